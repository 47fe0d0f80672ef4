package goGuard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditTrail hands audit events to the sink on its own goroutine, in the order the
// engine loop recorded them. Every recorded event takes a journal number, delivered or
// not, so a sink can see where events were lost.
type auditTrail struct {
	sink         AuditSink
	queue        chan AuditEvent
	dropIfFull   bool
	flushTimeout time.Duration

	// ctx is cancelled once the flush deadline passes; sinks receive it.
	ctx    context.Context
	cancel context.CancelFunc

	stop     chan struct{}
	finished chan struct{}
	once     sync.Once
	closing  atomic.Bool

	journal atomic.Uint64
	dropped atomic.Uint64
}

func newAuditTrail(cfg AuditConfig, sink AuditSink) *auditTrail {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &auditTrail{
		sink:         sink,
		queue:        make(chan AuditEvent, max(cfg.BufferSize, 1)),
		dropIfFull:   cfg.DropIfFull,
		flushTimeout: cfg.FlushTimeout,
		ctx:          ctx,
		cancel:       cancel,
		stop:         make(chan struct{}),
		finished:     make(chan struct{}),
	}
	go a.deliver()
	return a
}

func (a *auditTrail) deliver() {
	defer close(a.finished)

	for {
		select {
		case event := <-a.queue:
			a.hand(event)
		case <-a.stop:
			for {
				select {
				case event := <-a.queue:
					a.hand(event)
				default:
					return
				}
			}
		}
	}
}

// hand passes event to the sink unless the flush deadline already passed.
func (a *auditTrail) hand(event AuditEvent) {
	if a.ctx.Err() != nil {
		a.dropped.Add(1)
		return
	}
	a.sink.Emit(a.ctx, event)
}

// Record numbers event and queues it. With dropIfFull a full queue loses the event;
// otherwise Record waits for room until ctx ends, which also loses it.
func (a *auditTrail) Record(ctx context.Context, event AuditEvent) {
	if a == nil || a.closing.Load() {
		return
	}
	event.Journal = a.journal.Add(1)

	if a.dropIfFull {
		select {
		case a.queue <- event:
		default:
			a.dropped.Add(1)
		}
		return
	}

	select {
	case a.queue <- event:
	case <-ctx.Done():
		a.dropped.Add(1)
	case <-a.stop:
	}
}

// Close stops accepting events and flushes the queue. Once FlushTimeout passes the
// sink's context is cancelled and what is still queued counts as dropped.
func (a *auditTrail) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.closing.Store(true)
		close(a.stop)
		if a.flushTimeout > 0 {
			deadline := time.AfterFunc(a.flushTimeout, a.cancel)
			defer deadline.Stop()
		}
		<-a.finished
		a.cancel()
	})
}

// Recorded returns the last journal number handed out.
func (a *auditTrail) Recorded() uint64 {
	if a == nil {
		return 0
	}
	return a.journal.Load()
}

func (a *auditTrail) Dropped() uint64 {
	if a == nil {
		return 0
	}
	return a.dropped.Load()
}
