// Package rate provides the spacing gate that keeps monitor ticks from running closer
// together than a configured minimum.
//
// # What this package must NOT do
//
//   - Read a clock of its own. Callers pass the instant being gated.
package rate
