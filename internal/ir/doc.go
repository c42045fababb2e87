// Package ir provides the shared domain types of ruleforge.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal, so it stays
// the foundational layer with no circular dependencies.
//
// The types describe what the host system exposes to the engine:
//   - Entities (devices and data points) whose names become constants
//   - Proxy actions with their reflected method metadata
//   - Statuses and lifecycle events delivered by the host
package ir
