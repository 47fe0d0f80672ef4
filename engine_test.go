package goGuard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/session"
)

func TestUnlockedAppNoAction(t *testing.T) {
	h := newHarness(t, nil)

	report := h.open(time.Second, "C")
	if len(report.Forwarded) != 1 || report.Forwarded[0] != "C" {
		t.Fatalf("expected C forwarded, got %+v", report)
	}
	if h.provider.count() != 0 {
		t.Fatal("unlocked app was challenged")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricDecisionNotLocked]; got != 1 {
		t.Fatalf("expected one not-locked decision, got %d", got)
	}
}

func TestLockedAppWithoutGrantIsChallenged(t *testing.T) {
	h := newHarness(t, nil)

	h.open(time.Second, "A")
	live := h.live()
	if len(live) != 1 || live[0].App != "A" || live[0].State != session.Pending.String() {
		t.Fatalf("expected pending session for A, got %+v", live)
	}
	ch := h.provider.last(t)
	if ch.App != "A" || ch.Ticket == "" || ch.Seq != 1 {
		t.Fatalf("unexpected challenge %+v", ch)
	}
	if !ch.Deadline.Equal(testEpoch.Add(time.Second + 30*time.Second)) {
		t.Fatalf("unexpected deadline %v", ch.Deadline)
	}
	eventually(t, "delayed suspension", func() bool {
		h.clock.Advance(100 * time.Millisecond)
		return h.suspender.count() == 1
	})
}

func TestDuplicateTransitionsStartOneSession(t *testing.T) {
	h := newHarness(t, nil)

	h.at(time.Second)
	now := h.clock.Now()
	h.source.push("A", now.Add(-200*time.Millisecond))
	h.source.push("A", now.Add(-100*time.Millisecond))
	report := h.tick()
	if report.Events != 2 || len(report.Forwarded) != 1 {
		t.Fatalf("expected 2 events and 1 forward, got %+v", report)
	}

	// A reported again while its session is live
	h.open(2*time.Second, "A")
	// fallback keeps answering A
	h.at(3 * time.Second)
	if r := h.tick(); !r.Fallback || len(r.Forwarded) != 0 {
		t.Fatalf("expected fallback tick without forwards, got %+v", r)
	}

	if h.provider.count() != 1 {
		t.Fatalf("expected exactly one challenge, got %d", h.provider.count())
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricTransitionDuplicate]; got < 2 {
		t.Fatalf("expected duplicates counted, got %d", got)
	}
}

func TestEventsProcessedChronologically(t *testing.T) {
	h := newHarness(t, nil)

	h.at(time.Second)
	now := h.clock.Now()
	h.source.push("B", now.Add(-100*time.Millisecond))
	h.source.push("A", now.Add(-300*time.Millisecond))
	report := h.tick()
	if len(report.Forwarded) != 2 || report.Forwarded[0] != "A" || report.Forwarded[1] != "B" {
		t.Fatalf("expected A then B, got %+v", report.Forwarded)
	}
	// A was superseded by B inside the same tick
	live := h.live()
	if len(live) != 1 || live[0].App != "B" {
		t.Fatalf("expected only B live, got %+v", live)
	}
}

// bufferSource hands out its backing slice as is.
type bufferSource struct{ buf []ForegroundEvent }

func (b *bufferSource) Events(context.Context, time.Time, time.Time) ([]ForegroundEvent, error) {
	return b.buf, nil
}

func (b *bufferSource) Current(context.Context) (AppID, bool, error) { return "", false, nil }

func TestTickLeavesSourceSliceOrder(t *testing.T) {
	src := &bufferSource{}
	h := newHarness(t, func(_ *harness, b *Builder) {
		b.WithEventSource(src)
	})

	h.at(time.Second)
	now := h.clock.Now()
	src.buf = []ForegroundEvent{
		{App: "B", At: now.Add(-100 * time.Millisecond)},
		{App: "A", At: now.Add(-300 * time.Millisecond)},
	}
	report := h.tick()
	if len(report.Forwarded) != 2 || report.Forwarded[0] != "A" {
		t.Fatalf("expected A first, got %+v", report.Forwarded)
	}
	if src.buf[0].App != "B" || src.buf[1].App != "A" {
		t.Fatalf("source slice reordered: %+v", src.buf)
	}
}

func TestGracePeriodScenario(t *testing.T) {
	h := newHarness(t, nil)

	h.open(0, "A")
	eventually(t, "suspension", func() bool {
		h.clock.Advance(100 * time.Millisecond)
		return h.suspender.count() == 1
	})
	h.at(5 * time.Second)
	if err := h.resolve(h.provider.last(t), ResultGranted); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	at, ok := h.grant("A")
	if !ok || !at.Equal(testEpoch.Add(5*time.Second)) {
		t.Fatalf("expected grant at +5s, got %v ok=%v", at, ok)
	}
	if len(h.live()) != 0 {
		t.Fatal("granted session still live")
	}

	h.open(8*time.Second, "C")
	h.open(10*time.Second, "A")
	if h.provider.count() != 1 {
		t.Fatalf("A challenged inside grace period")
	}

	h.open(69*time.Second, "C")
	h.open(70*time.Second, "A")
	if h.provider.count() != 2 {
		t.Fatalf("expected re-challenge after grace, got %d challenges", h.provider.count())
	}
}

func TestGraceBoundaryThroughEngine(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.store.Put(ctx, "A", testEpoch); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	h.open(59*time.Second, "A")
	if h.provider.count() != 0 {
		t.Fatal("challenged at 59s")
	}
	h.open(59*time.Second+600*time.Millisecond, "C")
	h.open(60*time.Second+200*time.Millisecond, "A")
	if h.provider.count() != 1 {
		t.Fatal("not challenged after grace elapsed")
	}
}

func TestSupersessionScenario(t *testing.T) {
	h := newHarness(t, nil)

	h.open(time.Second, "A")
	chA := h.provider.last(t)

	h.open(2*time.Second, "B")
	chB := h.provider.last(t)
	if chB.App != "B" || chB.Seq != 2 {
		t.Fatalf("unexpected challenge for B %+v", chB)
	}
	live := h.live()
	if len(live) != 1 || live[0].App != "B" {
		t.Fatalf("expected only B live, got %+v", live)
	}
	dismissed := h.presenter.dismissedApps()
	if len(dismissed) != 1 || dismissed[0] != "A" {
		t.Fatalf("expected A dismissed, got %v", dismissed)
	}

	if err := h.resolve(chA, ResultGranted); !errors.Is(err, ErrSessionStale) {
		t.Fatalf("expected ErrSessionStale for superseded session, got %v", err)
	}
	if err := h.resolve(chB, ResultDenied); err != nil {
		t.Fatalf("resolve B: %v", err)
	}

	if _, ok := h.grant("A"); ok {
		t.Fatal("superseded session wrote a grant")
	}
	if _, ok := h.grant("B"); ok {
		t.Fatal("denied session wrote a grant")
	}
	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionSuperseded] != 1 || snap.Counters[MetricSessionDenied] != 1 {
		t.Fatalf("unexpected counters superseded=%d denied=%d",
			snap.Counters[MetricSessionSuperseded], snap.Counters[MetricSessionDenied])
	}
	if snap.Counters[MetricOutcomeStale] != 1 {
		t.Fatalf("expected one stale outcome, got %d", snap.Counters[MetricOutcomeStale])
	}
}

func TestSupersededSessionCancelsPendingSuspend(t *testing.T) {
	h := newHarness(t, func(_ *harness, b *Builder) {
		cfg := testConfig()
		cfg.Session.SuspendDelay = 5 * time.Second
		b.WithConfig(cfg)
	})

	h.open(time.Second, "A")
	h.open(2*time.Second, "C")
	h.at(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := h.suspender.count(); got != 0 {
		t.Fatalf("superseded session still suspended its target: %d", got)
	}
}

func TestExpiryLeavesGrantsUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.store.Put(ctx, "B", testEpoch); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	h.open(time.Second, "A")
	h.at(31 * time.Second)
	eventually(t, "expiry", func() bool { return len(h.live()) == 0 })

	if _, ok := h.grant("A"); ok {
		t.Fatal("expired session wrote a grant")
	}
	if at, ok := h.grant("B"); !ok || !at.Equal(testEpoch) {
		t.Fatal("expiry touched an unrelated grant")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricSessionExpired]; got != 1 {
		t.Fatalf("expected one expiry, got %d", got)
	}
	if h.suspender.count() != 1 {
		t.Fatalf("expected target suspended once, got %d", h.suspender.count())
	}
	ev := nextAudit(t, h.audit, AuditSessionExpired)
	if ev.App != "A" || ev.Success {
		t.Fatalf("unexpected audit event %+v", ev)
	}
}

func TestExpiryWhileAppReopenedChallengesAgain(t *testing.T) {
	h := newHarness(t, nil)

	h.open(time.Second, "A")
	h.open(10*time.Second, "launcher")
	// user returns to A while its session is still pending; dropped as in flight
	h.open(12*time.Second, "A")
	if h.provider.count() != 1 {
		t.Fatalf("expected one challenge, got %d", h.provider.count())
	}

	h.at(31 * time.Second)
	eventually(t, "expiry", func() bool { return len(h.live()) == 0 })

	h.source.setCurrent("A")
	h.at(32 * time.Second)
	h.tick()
	if h.provider.count() != 2 {
		t.Fatalf("expected A challenged again after expiry, got %d", h.provider.count())
	}
	if ch := h.provider.last(t); ch.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", ch.Seq)
	}
}

func TestExpiryWithAppStillInFrontWaitsForDistinctTransition(t *testing.T) {
	h := newHarness(t, nil)

	h.open(time.Second, "A")
	h.at(31 * time.Second)
	eventually(t, "expiry", func() bool { return len(h.live()) == 0 })

	// no new events; the source still reports A in front
	for i := 0; i < 4; i++ {
		h.at(time.Duration(32+i) * time.Second)
		report := h.tick()
		if !report.Fallback || len(report.Forwarded) != 0 {
			t.Fatalf("tick %d: expected A suppressed, got %+v", i, report)
		}
	}
	if h.provider.count() != 1 {
		t.Fatalf("expected no new challenge without a transition, got %d", h.provider.count())
	}

	h.open(40*time.Second, "launcher")
	h.open(41*time.Second, "A")
	if h.provider.count() != 2 {
		t.Fatalf("expected A challenged on its next transition, got %d", h.provider.count())
	}
}

func TestPresenterDownDeniesOncePerTransition(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Builder) {
		h.presenter.presentErr = errBoom
	})

	h.open(time.Second, "A")
	for i := 0; i < 4; i++ {
		h.at(time.Duration(2+i) * time.Second)
		h.tick()
	}
	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionDenied] != 1 {
		t.Fatalf("expected one denial, got %d", snap.Counters[MetricSessionDenied])
	}
	if h.suspender.count() != 1 {
		t.Fatalf("expected one suspension, got %d", h.suspender.count())
	}
}

func TestCancelledChallengeNotRepeatedWithoutTransition(t *testing.T) {
	h := newHarness(t, nil)

	h.open(time.Second, "A")
	if err := h.resolve(h.provider.last(t), ResultCancelled); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 4; i++ {
		h.at(time.Duration(2+i) * time.Second)
		h.tick()
	}
	if h.provider.count() != 1 {
		t.Fatalf("expected a single challenge, got %d", h.provider.count())
	}
}

func TestScreenLockInvalidatesGrants(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for _, app := range []AppID{"A", "B"} {
		if err := h.store.Put(ctx, app, testEpoch); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}

	h.open(time.Second, "A")
	if h.provider.count() != 0 {
		t.Fatal("challenged inside grace")
	}

	if err := h.engine.HandleScreenEvent(ctx, ScreenOff); err != nil {
		t.Fatalf("screen off: %v", err)
	}
	if _, ok := h.grant("A"); ok {
		t.Fatal("grant for A survived screen off")
	}
	if _, ok := h.grant("B"); ok {
		t.Fatal("grant for B survived screen off")
	}

	h.source.setCurrent("A")
	h.at(2 * time.Second)
	h.tick()
	if h.provider.count() != 1 {
		t.Fatal("A not challenged after screen lock")
	}
	nextAudit(t, h.audit, AuditGrantsCleared)
}

func TestScreenOffExpiresLiveSessions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.open(time.Second, "A")
	ch := h.provider.last(t)
	if err := h.engine.HandleScreenEvent(ctx, ScreenOff); err != nil {
		t.Fatalf("screen off: %v", err)
	}
	if len(h.live()) != 0 {
		t.Fatal("session survived screen off")
	}
	if err := h.resolve(ch, ResultGranted); !errors.Is(err, ErrSessionStale) {
		t.Fatalf("expected stale outcome, got %v", err)
	}
	if _, ok := h.grant("A"); ok {
		t.Fatal("grant written after screen off")
	}
}

func TestUserPresentClearsGrantsOnly(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.open(time.Second, "A")
	if err := h.store.Put(ctx, "B", testEpoch); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	if err := h.engine.HandleScreenEvent(ctx, UserPresent); err != nil {
		t.Fatalf("user present: %v", err)
	}
	if _, ok := h.grant("B"); ok {
		t.Fatal("grant survived user present")
	}
	if len(h.live()) != 1 {
		t.Fatal("user present ended a live session")
	}
}

func TestWatchScreenAppliesEvents(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.store.Put(ctx, "A", testEpoch); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	events := make(chan ScreenEvent, 1)
	done := make(chan error, 1)
	go func() { done <- h.engine.WatchScreen(ctx, events) }()

	events <- UserPresent
	eventually(t, "grants cleared", func() bool {
		_, ok := h.grant("A")
		return !ok
	})
	close(events)
	if err := <-done; err != nil {
		t.Fatalf("watcher returned %v", err)
	}
}

func TestPresenterFailureDeniesAndSuspends(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Builder) {
		h.presenter.presentErr = errBoom
	})

	h.open(time.Second, "A")
	if len(h.live()) != 0 {
		t.Fatal("session live after presenter failure")
	}
	if h.provider.count() != 0 {
		t.Fatal("provider asked despite presenter failure")
	}
	if h.suspender.count() != 1 {
		t.Fatalf("expected immediate suspension, got %d", h.suspender.count())
	}
	if _, ok := h.grant("A"); ok {
		t.Fatal("grant written on capability failure")
	}
	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionDenied] != 1 || snap.Counters[MetricCapabilityUnavailable] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestProviderFailureDenies(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Builder) {
		h.provider.err = errBoom
	})

	h.open(time.Second, "A")
	if len(h.live()) != 0 {
		t.Fatal("session live after provider failure")
	}
	if _, ok := h.grant("A"); ok {
		t.Fatal("grant written on provider failure")
	}
	ev := nextAudit(t, h.audit, AuditSessionDenied)
	if ev.Reason != "provider_unavailable" {
		t.Fatalf("unexpected reason %q", ev.Reason)
	}
}

func TestUnavailableAndCancelledResultsDeny(t *testing.T) {
	for _, result := range []Result{ResultUnavailable, ResultCancelled, ResultDenied} {
		t.Run(result.String(), func(t *testing.T) {
			h := newHarness(t, nil)
			h.open(time.Second, "A")
			if err := h.resolve(h.provider.last(t), result); err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if _, ok := h.grant("A"); ok {
				t.Fatal("grant written for non-success result")
			}
			if got := h.engine.MetricsSnapshot().Counters[MetricSessionDenied]; got != 1 {
				t.Fatalf("expected denial, got %d", got)
			}
		})
	}
}

func TestResolveRejectsForgedTicket(t *testing.T) {
	h := newHarness(t, nil)
	h.open(time.Second, "A")

	err := h.engine.Resolve(context.Background(), "forged", ResultGranted, "")
	if !errors.Is(err, ErrTicketInvalid) {
		t.Fatalf("expected ErrTicketInvalid, got %v", err)
	}
	if _, ok := h.grant("A"); ok {
		t.Fatal("forged ticket produced a grant")
	}
	if len(h.live()) != 1 {
		t.Fatal("forged ticket ended the session")
	}
}

func TestGrantedOutcomeResumesTarget(t *testing.T) {
	h := newHarness(t, nil)
	h.open(time.Second, "A")
	if err := h.resolve(h.provider.last(t), ResultGranted); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	resumed := h.suspender.resumedApps()
	if len(resumed) != 1 || resumed[0] != "A" {
		t.Fatalf("expected A resumed, got %v", resumed)
	}
	if err := h.resolve(h.provider.last(t), ResultGranted); !errors.Is(err, ErrSessionStale) {
		t.Fatalf("expected second outcome rejected, got %v", err)
	}
	ev := nextAudit(t, h.audit, AuditSessionGranted)
	if !ev.Success || ev.App != "A" || ev.Seq != 1 {
		t.Fatalf("unexpected audit event %+v", ev)
	}
}

func TestReservedAppsNeverChallengeOrSupersede(t *testing.T) {
	h := newHarness(t, nil)

	h.open(time.Second, "guard")
	if h.provider.count() != 0 {
		t.Fatal("guard challenged itself")
	}

	h.open(2*time.Second, "A")
	h.open(3*time.Second, "guard")
	h.open(4*time.Second, "launcher")
	live := h.live()
	if len(live) != 1 || live[0].App != "A" {
		t.Fatalf("reserved app superseded the session: %+v", live)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricDecisionReserved]; got != 3 {
		t.Fatalf("expected 3 reserved decisions, got %d", got)
	}
}

func TestFallbackToCurrentForeground(t *testing.T) {
	h := newHarness(t, nil)

	h.source.setCurrent("A")
	h.at(time.Second)
	report := h.tick()
	if !report.Fallback || report.Events != 0 {
		t.Fatalf("expected fallback tick, got %+v", report)
	}
	if h.provider.count() != 1 {
		t.Fatal("fallback app not challenged")
	}
}

func TestSourceErrorKeepsCursor(t *testing.T) {
	h := newHarness(t, nil)

	h.at(time.Second)
	h.source.push("A", h.clock.Now())
	h.source.setErr(errBoom)
	if _, err := h.engine.Tick(context.Background()); !errors.Is(err, ErrEventSource) {
		t.Fatalf("expected ErrEventSource, got %v", err)
	}
	if h.provider.count() != 0 {
		t.Fatal("failed tick routed events")
	}

	h.source.setErr(nil)
	h.at(2 * time.Second)
	report := h.tick()
	if report.Events != 1 || len(report.Forwarded) != 1 {
		t.Fatalf("event before failed tick was lost: %+v", report)
	}
}

func TestTicksInsideMinSpacingAreSkipped(t *testing.T) {
	h := newHarness(t, nil)

	h.at(time.Second)
	if r := h.tick(); r.Skipped {
		t.Fatal("first tick skipped")
	}
	h.at(time.Second + 100*time.Millisecond)
	if r := h.tick(); !r.Skipped {
		t.Fatal("tick inside min spacing not skipped")
	}
	h.at(time.Second + 600*time.Millisecond)
	if r := h.tick(); r.Skipped {
		t.Fatal("tick after min spacing skipped")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricTickSkipped]; got != 1 {
		t.Fatalf("expected one skipped tick, got %d", got)
	}
}

type failingLockedSet struct{ fail bool }

func (f *failingLockedSet) Contains(context.Context, AppID) (bool, error) {
	if f.fail {
		return false, errBoom
	}
	return true, nil
}

func TestLockedSetFailureRetriesNextTick(t *testing.T) {
	locked := &failingLockedSet{fail: true}
	h := newHarness(t, func(_ *harness, b *Builder) {
		b.WithLockedSet(locked)
	})

	h.open(time.Second, "A")
	if h.provider.count() != 0 {
		t.Fatal("challenged without membership answer")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricStoreFailure]; got != 1 {
		t.Fatalf("expected store failure counted, got %d", got)
	}

	locked.fail = false
	h.at(2 * time.Second)
	h.tick()
	if h.provider.count() != 1 {
		t.Fatal("app not re-evaluated after store recovered")
	}
}

func TestRunLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// ensure the loop is up before probing Run
	h.live()
	if err := h.engine.Run(ctx); !errors.Is(err, ErrEngineRunning) {
		t.Fatalf("expected ErrEngineRunning, got %v", err)
	}

	h.engine.Close()
	if _, err := h.engine.Tick(ctx); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("expected ErrEngineStopped, got %v", err)
	}
	if err := h.engine.HandleScreenEvent(ctx, ScreenOff); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("expected ErrEngineStopped, got %v", err)
	}
}

func TestAuditJournalFollowsSessionOrder(t *testing.T) {
	h := newHarness(t, nil)

	h.open(time.Second, "A")
	h.open(2*time.Second, "B")

	want := []string{AuditSessionAnnounced, AuditSessionSuperseded, AuditSessionAnnounced}
	for i, eventType := range want {
		ev := nextAudit(t, h.audit, eventType)
		if ev.Journal != uint64(i+1) {
			t.Fatalf("event %d (%s): expected journal %d, got %d", i, eventType, i+1, ev.Journal)
		}
	}
}
