// Package journal keeps a SQLite-backed history of rebuild attempts.
//
// Every rebuild, successful or not, appends one Build row: its ID, a
// per-journal sequence number, the trigger that requested it, timing, the
// outcome and the compiler diagnostics of a failure. The journal is
// history only; nothing reads it to decide whether work is needed.
//
// # Database Configuration
//
//   - WAL mode: the CLI can read history while a watcher records
//   - synchronous=NORMAL
//   - 5-second busy timeout for lock contention
//   - user_version tracks applied migrations
package journal
