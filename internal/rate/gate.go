package rate

import (
	"time"

	"golang.org/x/time/rate"
)

// Gate admits at most one event per spacing interval. A zero spacing admits everything.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a gate for the given minimum spacing.
func NewGate(spacing time.Duration) *Gate {
	if spacing <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(spacing), 1)}
}

// Allow reports whether an event at now may proceed and, if so, consumes the slot.
func (g *Gate) Allow(now time.Time) bool {
	return g.limiter.AllowN(now, 1)
}
