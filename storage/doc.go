// Package storage defines the persistence contracts for the locked-app registry and the
// authorization grant table, plus the compact binary encoding used by backends that
// persist grant timestamps as opaque values.
//
// Backends live in sub-packages: [memory] for tests and single-process use, bbolt for
// on-device persistence and redis for shared deployments.
//
// # What this package must NOT do
//
//   - Import goGuard (no upward imports).
//   - Make lock decisions. Stores only answer membership and timestamp queries.
package storage
