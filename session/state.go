package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a [Session].
type State uint8

const (
	Idle State = iota
	Announced
	Pending
	Granted
	Denied
	Expired
	Superseded
)

// ErrIllegalTransition is returned by [Session.Transition] for edges the machine forbids.
var ErrIllegalTransition = errors.New("illegal session transition")

var stateNames = [...]string{
	Idle:       "idle",
	Announced:  "announced",
	Pending:    "pending",
	Granted:    "granted",
	Denied:     "denied",
	Expired:    "expired",
	Superseded: "superseded",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Live reports whether the session still blocks new sessions for its app.
func (s State) Live() bool {
	return s == Announced || s == Pending
}

// Terminal reports whether s is an outcome state.
func (s State) Terminal() bool {
	switch s {
	case Granted, Denied, Expired, Superseded:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	switch from {
	case Idle:
		return to == Announced
	case Announced:
		// Denied covers an affordance that cannot be shown; Expired covers screen-off.
		return to == Pending || to == Denied || to == Expired || to == Superseded
	case Pending:
		return to.Terminal()
	default:
		return false
	}
}
