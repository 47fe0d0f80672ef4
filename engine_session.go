package goGuard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/session"
	"go.uber.org/zap"
)

func (e *Engine) beginSession(ctx context.Context, app AppID, now time.Time) {
	s, err := e.sessions.Begin(app, now)
	if err != nil {
		// observe() filters in-flight apps, so reaching this is an invariant violation
		e.metrics.Inc(MetricSessionInFlightRejected)
		e.log.Error("second live session refused", zap.String("app", app), zap.Error(err))
		return
	}
	s.Deadline = now.Add(e.config.Session.ChallengeTimeout)
	e.metrics.Inc(MetricSessionAnnounced)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditSessionAnnounced,
		App:       app,
		SessionID: s.ID,
		Seq:       s.Seq,
		Success:   true,
	})

	tok, err := e.tickets.Issue(s.ID, app, s.Seq, s.Deadline)
	if err != nil {
		e.log.Error("issue ticket", zap.String("app", app), zap.Error(err))
		e.finish(ctx, s, session.Denied, "ticket_unavailable")
		return
	}
	ch := Challenge{
		App:       app,
		SessionID: s.ID,
		Seq:       s.Seq,
		Ticket:    tok,
		Deadline:  s.Deadline,
	}

	if err := e.presenter.Present(ctx, ch); err != nil {
		e.metrics.Inc(MetricCapabilityUnavailable)
		e.log.Warn("affordance unavailable; denying",
			zap.String("app", app),
			zap.Error(errors.Join(ErrCapabilityUnavailable, err)),
		)
		e.finish(ctx, s, session.Denied, "presenter_unavailable")
		return
	}

	if delay := e.config.Session.SuspendDelay; delay > 0 {
		s.ArmSuspend(e.afterFunc(delay, func(ctx context.Context) {
			if e.isCurrent(s) && !s.Suspended {
				e.suspendTarget(ctx, s)
			}
		}))
	} else {
		e.suspendTarget(ctx, s)
	}

	if err := s.Transition(session.Pending); err != nil {
		e.log.Error("session transition", zap.Error(err))
		return
	}
	s.ArmExpiry(e.afterFunc(e.config.Session.ChallengeTimeout, func(ctx context.Context) {
		if e.isCurrent(s) {
			e.finish(ctx, s, session.Expired, "timeout")
		}
	}))

	if err := e.provider.RequestChallenge(ctx, ch); err != nil {
		e.metrics.Inc(MetricCapabilityUnavailable)
		e.log.Warn("challenge provider unavailable; denying",
			zap.String("app", app),
			zap.Error(errors.Join(ErrCapabilityUnavailable, err)),
		)
		e.finish(ctx, s, session.Denied, "provider_unavailable")
		return
	}

	e.log.Info("challenge pending",
		zap.String("app", app),
		zap.String("session", s.ID),
		zap.Uint64("seq", s.Seq),
	)
}

// isCurrent reports whether s is still the registered live session for its app.
func (e *Engine) isCurrent(s *session.Session) bool {
	cur, ok := e.sessions.Lookup(s.ID)
	return ok && cur == s && s.State.Live()
}

func (e *Engine) suspendTarget(ctx context.Context, s *session.Session) {
	s.Suspended = true
	if err := e.suspender.Suspend(ctx); err != nil {
		e.metrics.Inc(MetricSuspendFailure)
		e.log.Warn("suspend failed", zap.String("app", s.App), zap.Error(err))
		return
	}
	e.metrics.Inc(MetricSuspendIssued)
}

// supersedeOthers ends every live session whose app differs from app.
func (e *Engine) supersedeOthers(ctx context.Context, app AppID) {
	for _, s := range e.sessions.Live() {
		if s.App != app {
			e.finish(ctx, s, session.Superseded, "superseded_by:"+app)
		}
	}
}

// finish moves s to a terminal state and performs that state's side effects.
func (e *Engine) finish(ctx context.Context, s *session.Session, to session.State, reason string) {
	if err := s.Transition(to); err != nil {
		e.log.Error("session transition", zap.String("app", s.App), zap.Error(err))
		return
	}
	s.StopExpiry()
	pendingSuspend := s.StopSuspend()
	e.sessions.End(s)

	if err := e.presenter.Dismiss(ctx, s.App); err != nil {
		e.log.Warn("dismiss failed", zap.String("app", s.App), zap.Error(err))
	}

	event := AuditEvent{
		App:       s.App,
		SessionID: s.ID,
		Seq:       s.Seq,
		Reason:    reason,
	}

	switch to {
	case session.Granted:
		event.EventType = AuditSessionGranted
		event.Success = true
		e.metrics.Inc(MetricSessionGranted)
		if err := e.grants.Put(ctx, s.App, e.clock.Now()); err != nil {
			e.metrics.Inc(MetricStoreFailure)
			event.Metadata = map[string]string{"grant_error": err.Error()}
			e.log.Error("grant write failed; app will be challenged again",
				zap.String("app", s.App),
				zap.Error(err),
			)
		}
		if e.resumer != nil {
			if err := e.resumer.Resume(ctx, s.App); err != nil {
				e.log.Warn("resume failed", zap.String("app", s.App), zap.Error(err))
			}
		}
	case session.Denied, session.Expired:
		if to == session.Denied {
			event.EventType = AuditSessionDenied
			e.metrics.Inc(MetricSessionDenied)
		} else {
			event.EventType = AuditSessionExpired
			e.metrics.Inc(MetricSessionExpired)
		}
		// lastSeen is kept: the app is evaluated again on its next distinct transition
		if !s.Suspended {
			e.suspendTarget(ctx, s)
		}
	case session.Superseded:
		event.EventType = AuditSessionSuperseded
		e.metrics.Inc(MetricSessionSuperseded)
	}

	e.emitAudit(ctx, event)
	e.log.Info("session finished",
		zap.String("app", s.App),
		zap.String("session", s.ID),
		zap.Uint64("seq", s.Seq),
		zap.Stringer("state", to),
		zap.String("reason", reason),
		zap.Bool("suspend_cancelled", pendingSuspend),
	)
}

// Resolve delivers a challenge provider outcome. ticket is the value the provider
// received in its [Challenge]. Outcomes for sessions that already ended are rejected with
// ErrSessionStale and change nothing; any result other than ResultGranted denies.
func (e *Engine) Resolve(ctx context.Context, tok string, result Result, reason string) error {
	claims, err := e.tickets.Parse(tok)
	if err != nil {
		e.metrics.Inc(MetricOutcomeRejected)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditOutcomeRejected,
			Reason:    "invalid_ticket",
		})
		return errors.Join(ErrTicketInvalid, err)
	}

	return e.submit(ctx, func(loopCtx context.Context) error {
		s, ok := e.sessions.Lookup(claims.SessionID())
		if !ok || s.Seq != claims.Seq || s.App != claims.App || s.State != session.Pending {
			e.metrics.Inc(MetricOutcomeStale)
			e.emitAudit(loopCtx, AuditEvent{
				EventType: AuditOutcomeRejected,
				App:       claims.App,
				SessionID: claims.SessionID(),
				Seq:       claims.Seq,
				Reason:    "stale",
			})
			return ErrSessionStale
		}

		detail := result.String()
		if reason != "" {
			detail += ":" + reason
		}
		switch result {
		case ResultGranted:
			e.finish(loopCtx, s, session.Granted, detail)
		case ResultUnavailable:
			e.metrics.Inc(MetricCapabilityUnavailable)
			e.finish(loopCtx, s, session.Denied, detail)
		default:
			e.finish(loopCtx, s, session.Denied, detail)
		}
		return nil
	})
}

// Sessions returns a snapshot of the live sessions ordered by sequence number.
func (e *Engine) Sessions(ctx context.Context) ([]session.Info, error) {
	var out []session.Info
	err := e.submit(ctx, func(context.Context) error {
		live := e.sessions.Live()
		out = make([]session.Info, 0, len(live))
		for _, s := range live {
			out = append(out, s.Snapshot())
		}
		return nil
	})
	return out, err
}
