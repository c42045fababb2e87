// Package engine ties the classpath overlay, the source synthesizer, the
// dependency archive builder and the compile orchestrator into one
// lifecycle.
//
// LIFECYCLE:
//
//	Uninitialized -> BaselineBuilt -> Indexed -> Ready
//	Ready -> Rebuilding -> Ready
//
// Activate walks the first line: it builds the dependency archive, indexes
// the library directory, synthesizes every unit, copies the user sources
// into a fresh staging directory and runs the first rebuild. After that
// every trigger, whether a file event or a host event, ends in Rebuild.
// There is no failure state: a failed rebuild is logged once, recorded in
// the journal and returns to Ready with the previous helper archive still
// published.
//
// Every rebuild gets a UUIDv7 ID and a sequence number from Clock, which
// resumes from the journal's last entry so that sequence numbers keep
// increasing across runs.
package engine
