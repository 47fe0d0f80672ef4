package goGuard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Tick runs one monitor tick on the loop and reports what it did. The loop also ticks on
// its own every PollInterval; Tick is for callers that drive the monitor explicitly.
func (e *Engine) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	err := e.submit(ctx, func(loopCtx context.Context) error {
		var err error
		report, err = e.tick(loopCtx)
		return err
	})
	return report, err
}

func (e *Engine) tick(ctx context.Context) (TickReport, error) {
	var report TickReport

	now := e.clock.Now()
	if !e.mon.gate.Allow(now) {
		e.metrics.Inc(MetricTickSkipped)
		report.Skipped = true
		return report, nil
	}
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricTickLatency, time.Since(start))
	}()

	events, err := e.source.Events(ctx, e.mon.cursor, now)
	if err != nil {
		e.metrics.Inc(MetricTickFailed)
		return report, fmt.Errorf("%w: %v", ErrEventSource, err)
	}
	report.Events = len(events)

	apps := make([]AppID, 0, len(events))
	if len(events) > 0 {
		ordered := append([]ForegroundEvent(nil), events...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].At.Before(ordered[j].At) })
		for _, ev := range ordered {
			if ev.App != "" {
				apps = append(apps, ev.App)
			}
		}
	} else {
		app, ok, err := e.source.Current(ctx)
		if err != nil {
			e.metrics.Inc(MetricTickFailed)
			return report, fmt.Errorf("%w: %v", ErrEventSource, err)
		}
		e.metrics.Inc(MetricFallbackQuery)
		report.Fallback = true
		if ok && app != "" {
			apps = append(apps, app)
		}
	}

	for _, app := range apps {
		if e.observe(ctx, app, now) {
			report.Forwarded = append(report.Forwarded, app)
		}
	}

	e.mon.cursor = now
	e.metrics.Inc(MetricTickProcessed)
	return report, nil
}

// observe applies deduplication and forwards new transitions.
func (e *Engine) observe(ctx context.Context, app AppID, now time.Time) bool {
	if app == e.mon.lastSeen || e.sessions.InFlight(app) {
		e.metrics.Inc(MetricTransitionDuplicate)
		return false
	}
	e.mon.lastSeen = app
	e.metrics.Inc(MetricTransitionForwarded)
	e.log.Debug("foreground transition", zap.String("app", app))
	e.route(ctx, app, now)
	return true
}

// route supersedes sessions for other apps and runs the lock decision.
func (e *Engine) route(ctx context.Context, app AppID, now time.Time) {
	if e.policy.Reserved(app) {
		e.metrics.Inc(MetricDecisionReserved)
		return
	}
	e.supersedeOthers(ctx, app)

	verdict, err := e.evaluate(ctx, app, now)
	if err != nil {
		e.metrics.Inc(MetricStoreFailure)
		e.log.Warn("locked set unavailable; transition will be retried",
			zap.String("app", app),
			zap.Error(err),
		)
		// forget it so the next tick evaluates the app again
		e.mon.lastSeen = ""
		return
	}

	switch verdict.Reason {
	case ReasonNotLocked:
		e.metrics.Inc(MetricDecisionNotLocked)
	case ReasonWithinGrace:
		e.metrics.Inc(MetricDecisionWithinGrace)
	default:
		e.metrics.Inc(MetricDecisionChallenge)
	}
	if verdict.Decision != ChallengeRequired {
		return
	}
	e.log.Info("challenge required",
		zap.String("app", app),
		zap.Stringer("reason", verdict.Reason),
	)
	e.beginSession(ctx, app, now)
}

// evaluate reads the stores and applies the policy. A failed grant read is treated as an
// absent grant; a failed membership read is returned.
func (e *Engine) evaluate(ctx context.Context, app AppID, now time.Time) (Verdict, error) {
	locked, err := e.locked.Contains(ctx, app)
	if err != nil {
		return Verdict{}, err
	}
	if !locked {
		return e.policy.Evaluate(app, false, time.Time{}, false, now), nil
	}

	grant, ok, err := e.grants.Get(ctx, app)
	if err != nil {
		e.metrics.Inc(MetricStoreFailure)
		e.log.Warn("grant read failed; challenging",
			zap.String("app", app),
			zap.Error(errors.Join(ErrGrantStore, err)),
		)
		grant, ok = time.Time{}, false
	}
	return e.policy.Evaluate(app, true, grant, ok, now), nil
}
