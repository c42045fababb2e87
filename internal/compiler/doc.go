// Package compiler runs the host compiler toolchain against the classpath
// overlay and publishes the helper archive.
//
// Compile is the single entry point into a Toolchain: it collects the
// toolchain's diagnostics, drains them after every run and turns a failed
// run into a *CompileError carrying them. Orchestrator.Rebuild wraps a full
// cycle (compile every staged source, package every staged class) under the
// overlay lock.
package compiler
