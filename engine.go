package goGuard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/ticket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// op is a unit of work executed on the monitoring loop.
type op func(ctx context.Context)

// monitorState is owned by the loop goroutine.
type monitorState struct {
	cursor   time.Time
	lastSeen AppID
	gate     *rate.Gate
}

// Engine is the lock enforcement engine. Build one with [New] and drive it with [Run].
type Engine struct {
	config Config
	clock  clockwork.Clock
	log    *zap.Logger

	locked    LockedSet
	grants    GrantTable
	source    EventSource
	presenter Presenter
	suspender Suspender
	resumer   Resumer
	provider  ChallengeProvider
	closers   []func() error

	policy   Policy
	tickets  *ticket.Manager
	mon      monitorState
	sessions *session.Registry

	audit   *auditTrail
	metrics *Metrics

	ops       chan op
	closed    chan struct{}
	loopDone  chan struct{}
	running   atomic.Bool
	closeOnce sync.Once
}

// Run drives the monitoring loop until ctx is cancelled or Close is called. Run may be
// called once; a concurrent second call returns ErrEngineRunning and a call after the
// loop exited returns ErrEngineStopped, as does every engine call from then on.
func (e *Engine) Run(ctx context.Context) error {
	select {
	case <-e.loopDone:
		return ErrEngineStopped
	default:
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}
	defer close(e.loopDone)
	defer e.stopTimers()

	ticker := e.clock.NewTicker(e.config.Monitor.PollInterval)
	defer ticker.Stop()

	e.log.Info("monitor started",
		zap.Duration("poll_interval", e.config.Monitor.PollInterval),
		zap.Duration("grace_period", e.config.Session.GracePeriod),
	)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("monitor stopped", zap.Error(ctx.Err()))
			return nil
		case <-e.closed:
			e.log.Info("monitor closed")
			return nil
		case <-ticker.Chan():
			if _, err := e.tick(ctx); err != nil {
				e.log.Warn("tick abandoned", zap.Error(err))
			}
		case fn := <-e.ops:
			fn(ctx)
		}
	}
}

// submit runs fn on the loop and waits for its result.
func (e *Engine) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res := make(chan error, 1)
	wrapped := func(loopCtx context.Context) { res <- fn(loopCtx) }

	select {
	case e.ops <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.loopDone:
		return ErrEngineStopped
	case <-e.closed:
		return ErrEngineStopped
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.loopDone:
		return ErrEngineStopped
	}
}

// post queues fn without waiting. Used by timer callbacks.
func (e *Engine) post(fn op) {
	select {
	case e.ops <- fn:
	case <-e.loopDone:
	case <-e.closed:
	}
}

// afterFunc schedules fn on the loop after d.
func (e *Engine) afterFunc(d time.Duration, fn op) clockwork.Timer {
	return e.clock.AfterFunc(d, func() { go e.post(fn) })
}

func (e *Engine) stopTimers() {
	for _, s := range e.sessions.Live() {
		s.StopExpiry()
		s.StopSuspend()
	}
}

// Close stops the loop, flushes the audit trail and closes stores the builder opened.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		close(e.closed)
		if e.running.Load() {
			<-e.loopDone
		}
		if e.audit != nil {
			e.audit.Close()
		}
		for _, c := range e.closers {
			if err := c(); err != nil {
				e.log.Warn("close store", zap.Error(err))
			}
		}
		_ = e.log.Sync()
	})
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.clock.Now()
	}
	e.audit.Record(ctx, event)
}
