package session

import (
	"fmt"
	"time"
)

// Timer is the subset of a clock timer a session needs to cancel pending work.
type Timer interface {
	Stop() bool
}

// Session tracks one challenge attempt for one application.
type Session struct {
	ID        string
	Seq       uint64
	App       string
	CreatedAt time.Time
	Deadline  time.Time
	State     State
	// Suspended is set once the target has been sent to the background.
	Suspended bool

	expiry  Timer
	suspend Timer
}

// Transition moves the session to next or returns ErrIllegalTransition.
func (s *Session) Transition(next State) error {
	if !CanTransition(s.State, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.State, next)
	}
	s.State = next
	return nil
}

// ArmExpiry replaces the expiry timer, stopping any previous one.
func (s *Session) ArmExpiry(t Timer) {
	s.StopExpiry()
	s.expiry = t
}

// ArmSuspend replaces the delayed-suspend timer, stopping any previous one.
func (s *Session) ArmSuspend(t Timer) {
	s.StopSuspend()
	s.suspend = t
}

// StopExpiry cancels the expiry timer if armed.
func (s *Session) StopExpiry() {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

// StopSuspend cancels the delayed suspension. It reports whether a suspension was
// still pending.
func (s *Session) StopSuspend() bool {
	if s.suspend == nil {
		return false
	}
	stopped := s.suspend.Stop()
	s.suspend = nil
	return stopped
}

// Info is a read-only snapshot of a session.
type Info struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	App       string    `json:"app"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline,omitempty"`
	Suspended bool      `json:"suspended"`
}

// Snapshot copies the exported fields of s.
func (s *Session) Snapshot() Info {
	return Info{
		ID:        s.ID,
		Seq:       s.Seq,
		App:       s.App,
		State:     s.State.String(),
		CreatedAt: s.CreatedAt,
		Deadline:  s.Deadline,
		Suspended: s.Suspended,
	}
}
