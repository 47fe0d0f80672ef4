// Package foreground provides [goGuard.EventSource] implementations.
//
// [Feed] is a bounded in-memory buffer of transitions pushed by the device agent. When
// full, the oldest event is dropped. [XProp] asks an X11 server for the focused window's
// class and only answers the current-foreground query. [WithFallback] composes a primary
// source with a second one used for the current-foreground query.
package foreground
