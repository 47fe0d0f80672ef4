// Package ticket issues and verifies the signed challenge tickets that bind a provider
// outcome to exactly one authentication session.
//
// A ticket is an HS256 JWT carrying the session ID (jti), the target app and the
// session sequence number, and expires at the session deadline. The signing key lives
// in a memguard enclave and is only decrypted for the duration of a sign or verify call.
//
// # What this package must NOT do
//
//   - Decide whether a session is still live. The engine checks that after parsing.
//   - Import goGuard (no upward imports).
package ticket
