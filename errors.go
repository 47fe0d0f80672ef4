package goGuard

import "errors"

var (
	// ErrEngineStopped is returned by calls made after the loop exited or Close was called.
	ErrEngineStopped = errors.New("engine stopped")
	// ErrEngineRunning is returned by a second concurrent call to Run.
	ErrEngineRunning = errors.New("engine already running")
	// ErrEventSource wraps failures of the foreground event source.
	ErrEventSource = errors.New("event source unavailable")
	// ErrTicketInvalid is returned by Resolve for unverifiable tickets.
	ErrTicketInvalid = errors.New("invalid challenge ticket")
	// ErrSessionStale is returned by Resolve when the ticket's session is no longer live.
	ErrSessionStale = errors.New("session no longer live")
	// ErrCapabilityUnavailable marks presenter or provider failures that force a denial.
	ErrCapabilityUnavailable = errors.New("challenge capability unavailable")
	// ErrUnknownResult is returned by ParseResult.
	ErrUnknownResult = errors.New("unknown challenge result")
	// ErrUnknownScreenEvent is returned by ParseScreenEvent.
	ErrUnknownScreenEvent = errors.New("unknown screen event")
	// ErrGrantStore wraps grant table failures surfaced to callers.
	ErrGrantStore = errors.New("grant store unavailable")
)
