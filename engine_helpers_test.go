package goGuard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/storage/memory"
	"github.com/jonboulle/clockwork"
)

var testEpoch = time.Unix(1_700_000_000, 0)

type fakeSource struct {
	mu         sync.Mutex
	events     []ForegroundEvent
	current    AppID
	hasCurrent bool
	err        error
	queries    int
}

func (f *fakeSource) Events(_ context.Context, since, until time.Time) ([]ForegroundEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	var out []ForegroundEvent
	for _, ev := range f.events {
		if ev.At.After(since) && !ev.At.After(until) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeSource) Current(context.Context) (AppID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	return f.current, f.hasCurrent, nil
}

func (f *fakeSource) push(app AppID, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ForegroundEvent{App: app, At: at})
	f.current, f.hasCurrent = app, true
}

func (f *fakeSource) setCurrent(app AppID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current, f.hasCurrent = app, app != ""
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakePresenter struct {
	mu         sync.Mutex
	presented  []Challenge
	dismissed  []AppID
	presentErr error
}

func (p *fakePresenter) Present(_ context.Context, ch Challenge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.presentErr != nil {
		return p.presentErr
	}
	p.presented = append(p.presented, ch)
	return nil
}

func (p *fakePresenter) Dismiss(_ context.Context, app AppID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = append(p.dismissed, app)
	return nil
}

func (p *fakePresenter) dismissedApps() []AppID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AppID(nil), p.dismissed...)
}

type fakeSuspender struct {
	mu       sync.Mutex
	suspends int
	resumed  []AppID
}

func (s *fakeSuspender) Suspend(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspends++
	return nil
}

func (s *fakeSuspender) Resume(_ context.Context, app AppID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumed = append(s.resumed, app)
	return nil
}

func (s *fakeSuspender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspends
}

func (s *fakeSuspender) resumedApps() []AppID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AppID(nil), s.resumed...)
}

type fakeProvider struct {
	mu         sync.Mutex
	challenges []Challenge
	err        error
}

func (p *fakeProvider) RequestChallenge(_ context.Context, ch Challenge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.challenges = append(p.challenges, ch)
	return nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.challenges)
}

func (p *fakeProvider) last(t *testing.T) Challenge {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.challenges) == 0 {
		t.Fatal("no challenge requested")
	}
	return p.challenges[len(p.challenges)-1]
}

type harness struct {
	t         *testing.T
	engine    *Engine
	clock     *clockwork.FakeClock
	store     *memory.Store
	source    *fakeSource
	presenter *fakePresenter
	suspender *fakeSuspender
	provider  *fakeProvider
	audit     *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	// the loop's own ticker stays quiet; tests tick explicitly
	cfg.Monitor.PollInterval = 24 * time.Hour
	cfg.Monitor.SelfAppID = "guard"
	cfg.Monitor.NeutralApps = []AppID{"launcher"}
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 128}
	return cfg
}

func newHarness(t *testing.T, mutate func(*harness, *Builder)) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		clock:     clockwork.NewFakeClockAt(testEpoch),
		store:     memory.New("A", "B", "guard"),
		source:    &fakeSource{},
		presenter: &fakePresenter{},
		suspender: &fakeSuspender{},
		provider:  &fakeProvider{},
		audit:     NewChannelSink(128),
	}

	b := New().
		WithConfig(testConfig()).
		WithStore(h.store).
		WithEventSource(h.source).
		WithPresenter(h.presenter).
		WithSuspender(h.suspender).
		WithChallengeProvider(h.provider).
		WithAuditSink(h.audit).
		WithClock(h.clock)
	if mutate != nil {
		mutate(h, b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	h.engine = engine

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- engine.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-runDone
		engine.Close()
	})
	return h
}

// at moves the fake clock to testEpoch+offset.
func (h *harness) at(offset time.Duration) {
	h.t.Helper()
	target := testEpoch.Add(offset)
	d := target.Sub(h.clock.Now())
	if d < 0 {
		h.t.Fatalf("clock cannot move backwards to %v", offset)
	}
	h.clock.Advance(d)
}

func (h *harness) tick() TickReport {
	h.t.Helper()
	report, err := h.engine.Tick(context.Background())
	if err != nil {
		h.t.Fatalf("tick: %v", err)
	}
	return report
}

// open reports app in the foreground at testEpoch+offset and ticks.
func (h *harness) open(offset time.Duration, app AppID) TickReport {
	h.t.Helper()
	h.at(offset)
	h.source.push(app, h.clock.Now())
	return h.tick()
}

func (h *harness) resolve(ch Challenge, result Result) error {
	return h.engine.Resolve(context.Background(), ch.Ticket, result, "")
}

func (h *harness) live() []session.Info {
	h.t.Helper()
	infos, err := h.engine.Sessions(context.Background())
	if err != nil {
		h.t.Fatalf("sessions: %v", err)
	}
	return infos
}

func (h *harness) grant(app AppID) (time.Time, bool) {
	h.t.Helper()
	at, ok, err := h.store.Get(context.Background(), app)
	if err != nil {
		h.t.Fatalf("grant lookup: %v", err)
	}
	return at, ok
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func nextAudit(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for audit event %s", eventType)
		}
	}
}

var errBoom = errors.New("boom")
