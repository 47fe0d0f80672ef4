package goGuard

import "time"

// Decision is the output of the lock decision.
type Decision uint8

const (
	NoAction Decision = iota
	ChallengeRequired
)

func (d Decision) String() string {
	if d == ChallengeRequired {
		return "challenge_required"
	}
	return "no_action"
}

// Reason explains a [Verdict].
type Reason uint8

const (
	ReasonNotLocked Reason = iota
	ReasonReserved
	ReasonWithinGrace
	ReasonGraceElapsed
	ReasonNoGrant
)

var reasonNames = [...]string{
	ReasonNotLocked:    "not_locked",
	ReasonReserved:     "reserved",
	ReasonWithinGrace:  "within_grace",
	ReasonGraceElapsed: "grace_elapsed",
	ReasonNoGrant:      "no_grant",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Verdict is a decision plus the reason it was reached.
type Verdict struct {
	Decision Decision
	Reason   Reason
}

// Decide is the lock decision: challenge a locked app unless its last successful
// authentication is younger than grace. A zero grant time means never authenticated.
func Decide(locked bool, grant, now time.Time, grace time.Duration) Decision {
	if !locked {
		return NoAction
	}
	if !grant.IsZero() && now.Sub(grant) < grace {
		return NoAction
	}
	return ChallengeRequired
}

// Policy applies [Decide] and excludes reserved identifiers.
type Policy struct {
	self    AppID
	neutral map[AppID]struct{}
	grace   time.Duration
}

// NewPolicy builds a policy. self and every neutral app are reserved.
func NewPolicy(self AppID, neutral []AppID, grace time.Duration) Policy {
	p := Policy{
		self:    self,
		neutral: make(map[AppID]struct{}, len(neutral)),
		grace:   grace,
	}
	for _, app := range neutral {
		p.neutral[app] = struct{}{}
	}
	return p
}

// Reserved reports whether app is the guard itself or a neutral surface.
func (p Policy) Reserved(app AppID) bool {
	if p.self != "" && app == p.self {
		return true
	}
	_, ok := p.neutral[app]
	return ok
}

// Grace returns the configured grace period.
func (p Policy) Grace() time.Duration {
	return p.grace
}

// Evaluate decides for app given its membership and grant. hasGrant=false is equivalent
// to a grant at time zero.
func (p Policy) Evaluate(app AppID, locked bool, grant time.Time, hasGrant bool, now time.Time) Verdict {
	switch {
	case p.Reserved(app):
		return Verdict{Decision: NoAction, Reason: ReasonReserved}
	case !locked:
		return Verdict{Decision: NoAction, Reason: ReasonNotLocked}
	case !hasGrant:
		return Verdict{Decision: ChallengeRequired, Reason: ReasonNoGrant}
	}
	if Decide(locked, grant, now, p.grace) == NoAction {
		return Verdict{Decision: NoAction, Reason: ReasonWithinGrace}
	}
	return Verdict{Decision: ChallengeRequired, Reason: ReasonGraceElapsed}
}
