package foreground

import (
	"context"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

type fallbackSource struct {
	primary  goGuard.EventSource
	fallback goGuard.EventSource
}

// WithFallback returns a source that reads events from primary and answers Current from
// primary first, then fallback when primary cannot tell or fails.
func WithFallback(primary, fallback goGuard.EventSource) goGuard.EventSource {
	if fallback == nil {
		return primary
	}
	return &fallbackSource{primary: primary, fallback: fallback}
}

func (s *fallbackSource) Events(ctx context.Context, since, until time.Time) ([]goGuard.ForegroundEvent, error) {
	return s.primary.Events(ctx, since, until)
}

func (s *fallbackSource) Current(ctx context.Context) (goGuard.AppID, bool, error) {
	app, ok, err := s.primary.Current(ctx)
	if err == nil && ok {
		return app, true, nil
	}
	app2, ok2, err2 := s.fallback.Current(ctx)
	if err2 != nil {
		if err != nil {
			return "", false, err
		}
		return "", false, err2
	}
	return app2, ok2, nil
}
