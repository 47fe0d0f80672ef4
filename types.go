package goGuard

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AppID identifies an application. It is opaque and compared by equality only.
type AppID = string

// ForegroundEvent is a single foreground transition reported by an [EventSource].
type ForegroundEvent struct {
	App AppID     `json:"app"`
	At  time.Time `json:"at"`
}

// EventSource reports foreground transitions. Implementations are polled and are never
// assumed to push.
type EventSource interface {
	// Events returns transitions with since < At <= until. An empty result is valid. The
	// engine reads the returned slice and never modifies it.
	Events(ctx context.Context, since, until time.Time) ([]ForegroundEvent, error)
	// Current returns the application now in front, if the source can tell.
	Current(ctx context.Context) (AppID, bool, error)
}

// LockedSet answers protected-app membership.
type LockedSet interface {
	Contains(ctx context.Context, app AppID) (bool, error)
}

// GrantTable stores the time of the last successful authentication per app.
type GrantTable interface {
	Get(ctx context.Context, app AppID) (time.Time, bool, error)
	Put(ctx context.Context, app AppID, at time.Time) error
	Clear(ctx context.Context) error
}

// Challenge is handed to the presenter and the challenge provider when a session starts.
// Ticket must be returned unchanged to [Engine.Resolve].
type Challenge struct {
	App       AppID     `json:"app"`
	SessionID string    `json:"session"`
	Seq       uint64    `json:"seq"`
	Ticket    string    `json:"ticket"`
	Deadline  time.Time `json:"deadline"`
}

// Presenter shows and removes the challenge affordance. Both calls must be idempotent.
type Presenter interface {
	Present(ctx context.Context, ch Challenge) error
	Dismiss(ctx context.Context, app AppID) error
}

// Suspender sends the current foreground application to the background.
type Suspender interface {
	Suspend(ctx context.Context) error
}

// Resumer brings app back to the foreground after a successful challenge. Optional.
type Resumer interface {
	Resume(ctx context.Context, app AppID) error
}

// ChallengeProvider starts a verification and returns without waiting for it. The single
// outcome is delivered later through [Engine.Resolve].
type ChallengeProvider interface {
	RequestChallenge(ctx context.Context, ch Challenge) error
}

// Result is the outcome a challenge provider reports.
type Result uint8

const (
	ResultGranted Result = iota + 1
	ResultDenied
	ResultCancelled
	// ResultUnavailable means the provider could not run at all, for example because no
	// recognition hardware is present or nothing is enrolled.
	ResultUnavailable
)

func (r Result) String() string {
	switch r {
	case ResultGranted:
		return "granted"
	case ResultDenied:
		return "denied"
	case ResultCancelled:
		return "cancelled"
	case ResultUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// ParseResult maps the wire name of a result back to its value.
func ParseResult(s string) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted", "success":
		return ResultGranted, nil
	case "denied", "failure", "failed":
		return ResultDenied, nil
	case "cancelled", "canceled", "cancel":
		return ResultCancelled, nil
	case "unavailable":
		return ResultUnavailable, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownResult, s)
	}
}

// ScreenEvent is a device screen signal.
type ScreenEvent uint8

const (
	ScreenOff ScreenEvent = iota + 1
	UserPresent
)

func (s ScreenEvent) String() string {
	switch s {
	case ScreenOff:
		return "screen_off"
	case UserPresent:
		return "user_present"
	default:
		return fmt.Sprintf("screen(%d)", uint8(s))
	}
}

// ParseScreenEvent maps a wire name to a [ScreenEvent].
func ParseScreenEvent(s string) (ScreenEvent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "screen_off", "off":
		return ScreenOff, nil
	case "user_present", "present", "unlock":
		return UserPresent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScreenEvent, s)
	}
}

// TickReport describes what one monitor tick did.
type TickReport struct {
	Skipped   bool
	Events    int
	Fallback  bool
	Forwarded []AppID
}
