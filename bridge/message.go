package bridge

import (
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

// Message types. The first group flows from the agent, the second to it.
const (
	TypeForeground  = "foreground"
	TypeScreenOff   = "screen_off"
	TypeUserPresent = "user_present"
	TypeOutcome     = "outcome"

	TypePresent   = "present"
	TypeChallenge = "challenge"
	TypeDismiss   = "dismiss"
	TypeSuspend   = "suspend"
	TypeResume    = "resume"
	TypeError     = "error"
)

// Message is the single JSON envelope used in both directions.
type Message struct {
	Type     string        `json:"type"`
	App      goGuard.AppID `json:"app,omitempty"`
	At       time.Time     `json:"at,omitzero"`
	Session  string        `json:"session,omitempty"`
	Seq      uint64        `json:"seq,omitempty"`
	Ticket   string        `json:"ticket,omitempty"`
	Deadline time.Time     `json:"deadline,omitzero"`
	Result   string        `json:"result,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

func challengeMessage(typ string, ch goGuard.Challenge) Message {
	return Message{
		Type:     typ,
		App:      ch.App,
		Session:  ch.SessionID,
		Seq:      ch.Seq,
		Ticket:   ch.Ticket,
		Deadline: ch.Deadline,
	}
}
