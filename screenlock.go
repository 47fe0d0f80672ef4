package goGuard

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/session"
	"go.uber.org/zap"
)

// HandleScreenEvent invalidates every grant. ScreenOff additionally expires live sessions
// and forgets the last seen app, so whatever is in front after unlock is evaluated again.
func (e *Engine) HandleScreenEvent(ctx context.Context, ev ScreenEvent) error {
	if ev != ScreenOff && ev != UserPresent {
		return ErrUnknownScreenEvent
	}
	return e.submit(ctx, func(loopCtx context.Context) error {
		if ev == ScreenOff {
			for _, s := range e.sessions.Live() {
				e.finish(loopCtx, s, session.Expired, "screen_off")
			}
			e.mon.lastSeen = ""
		}
		return e.clearGrants(loopCtx, ev.String())
	})
}

// InvalidateGrants clears the grant table through the loop, exactly as a screen signal
// would, without touching live sessions.
func (e *Engine) InvalidateGrants(ctx context.Context) error {
	return e.submit(ctx, func(loopCtx context.Context) error {
		return e.clearGrants(loopCtx, "manual")
	})
}

func (e *Engine) clearGrants(ctx context.Context, cause string) error {
	if err := e.grants.Clear(ctx); err != nil {
		e.metrics.Inc(MetricStoreFailure)
		e.log.Error("grant invalidation failed", zap.String("cause", cause), zap.Error(err))
		return errors.Join(ErrGrantStore, err)
	}
	e.metrics.Inc(MetricGrantsCleared)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditGrantsCleared,
		Success:   true,
		Reason:    cause,
	})
	e.log.Info("grants invalidated", zap.String("cause", cause))
	return nil
}

// WatchScreen applies every event from events until the channel closes or ctx ends.
// Individual failures are logged and do not stop the watcher.
func (e *Engine) WatchScreen(ctx context.Context, events <-chan ScreenEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.HandleScreenEvent(ctx, ev); err != nil {
				if errors.Is(err, ErrEngineStopped) {
					return err
				}
				e.log.Warn("screen event", zap.Stringer("event", ev), zap.Error(err))
			}
		}
	}
}
