package goGuard

import (
	"errors"
	"strings"
	"time"
)

// Config holds engine tuning. Obtain defaults through [New] and override with
// [Builder.WithConfig]; the builder clones the value it receives.
type Config struct {
	Monitor MonitorConfig
	Session SessionConfig
	Ticket  TicketConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
MONITOR CONFIG
====================================
*/

// MonitorConfig controls the polling loop.
type MonitorConfig struct {
	PollInterval time.Duration
	// MinSpacing is the minimum time between two processed ticks.
	MinSpacing time.Duration
	// SelfAppID is the guard's own identifier. It is never challenged.
	SelfAppID AppID
	// NeutralApps are surfaces such as the home launcher that never start or supersede
	// a session.
	NeutralApps []AppID
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the authentication session machine.
type SessionConfig struct {
	GracePeriod      time.Duration
	ChallengeTimeout time.Duration
	// SuspendDelay is the pause between showing the affordance and suspending the target.
	SuspendDelay time.Duration
}

/*
====================================
TICKET CONFIG
====================================
*/

// TicketConfig controls challenge ticket signing. An empty Key generates a random one.
type TicketConfig struct {
	Issuer string
	Key    []byte
	Leeway time.Duration
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// FlushTimeout bounds how long Close keeps handing queued events to the sink.
	// Zero waits until the queue is empty.
	FlushTimeout time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Monitor: MonitorConfig{
			PollInterval: time.Second,
			MinSpacing:   500 * time.Millisecond,
		},
		Session: SessionConfig{
			GracePeriod:      60 * time.Second,
			ChallengeTimeout: 30 * time.Second,
			SuspendDelay:     300 * time.Millisecond,
		},
		Ticket: TicketConfig{
			Issuer: "goguard",
			Leeway: time.Second,
		},
		Audit: AuditConfig{
			BufferSize:   256,
			DropIfFull:   true,
			FlushTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Ticket.Key = cloneBytes(cfg.Ticket.Key)
	if cfg.Monitor.NeutralApps != nil {
		out.Monitor.NeutralApps = append([]AppID(nil), cfg.Monitor.NeutralApps...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Monitor
	if c.Monitor.PollInterval <= 0 {
		return errors.New("Monitor PollInterval must be > 0")
	}
	if c.Monitor.MinSpacing < 0 {
		return errors.New("Monitor MinSpacing must be >= 0")
	}
	if c.Monitor.MinSpacing > c.Monitor.PollInterval {
		return errors.New("Monitor MinSpacing must not exceed PollInterval")
	}
	if c.Monitor.SelfAppID != strings.TrimSpace(c.Monitor.SelfAppID) {
		return errors.New("Monitor SelfAppID must not have surrounding whitespace")
	}
	for _, app := range c.Monitor.NeutralApps {
		if strings.TrimSpace(app) == "" {
			return errors.New("Monitor NeutralApps must not contain empty identifiers")
		}
	}

	// Session
	if c.Session.GracePeriod < 0 {
		return errors.New("Session GracePeriod must be >= 0")
	}
	if c.Session.ChallengeTimeout <= 0 {
		return errors.New("Session ChallengeTimeout must be > 0")
	}
	if c.Session.SuspendDelay < 0 {
		return errors.New("Session SuspendDelay must be >= 0")
	}
	if c.Session.SuspendDelay >= c.Session.ChallengeTimeout {
		return errors.New("Session SuspendDelay must be shorter than ChallengeTimeout")
	}

	// Ticket
	if strings.TrimSpace(c.Ticket.Issuer) == "" {
		return errors.New("Ticket Issuer must not be empty")
	}
	if c.Ticket.Leeway < 0 || c.Ticket.Leeway > 30*time.Second {
		return errors.New("Ticket Leeway must be between 0 and 30s")
	}
	if len(c.Ticket.Key) > 0 && len(c.Ticket.Key) < 32 {
		return errors.New("Ticket Key must be at least 32 bytes")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.FlushTimeout < 0 {
		return errors.New("Audit FlushTimeout must be >= 0")
	}
	return nil
}
