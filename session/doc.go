// Package session implements the per-challenge authentication session state machine and
// the in-flight registry that enforces at most one live session per application.
//
// # States
//
//	Idle -> Announced -> Pending -> Granted | Denied | Expired | Superseded
//
// Announced and Pending are live. The remaining states are terminal; a terminal session
// never transitions again.
//
// # Concurrency
//
// [Registry] and [Session] are not safe for concurrent use. They are owned by the engine's
// single monitoring loop and every mutation happens on that goroutine.
//
// # What this package must NOT do
//
//   - Import goGuard or storage (no upward imports).
//   - Write grants or talk to presenters. It only tracks state and timers.
package session
