// Package server exposes the guard over HTTP with a chi router: health, metrics, the
// device agent websocket, locked-set editing, grant invalidation, outcome and screen
// signal delivery, and live session introspection.
package server
