package foreground

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

// DefaultCapacity is the Feed size used when NewFeed receives a non-positive capacity.
const DefaultCapacity = 512

// ErrEmptyApp is returned by Push for a blank identifier.
var ErrEmptyApp = errors.New("foreground: empty app identifier")

// Feed is a ring buffer of foreground transitions. It is safe for concurrent use.
type Feed struct {
	mu      sync.RWMutex
	buf     []goGuard.ForegroundEvent
	start   int
	size    int
	dropped uint64
	current goGuard.AppID
	has     bool
}

var _ goGuard.EventSource = (*Feed)(nil)

// NewFeed returns a feed holding at most capacity events.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{buf: make([]goGuard.ForegroundEvent, capacity)}
}

// Push records a transition. Events may arrive out of order; Events sorts on read.
func (f *Feed) Push(ev goGuard.ForegroundEvent) error {
	ev.App = strings.TrimSpace(ev.App)
	if ev.App == "" {
		return ErrEmptyApp
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.size == len(f.buf) {
		f.start = (f.start + 1) % len(f.buf)
		f.size--
		f.dropped++
	}
	f.buf[(f.start+f.size)%len(f.buf)] = ev
	f.size++

	f.current = ev.App
	f.has = true
	return nil
}

// Events returns buffered transitions with since < At <= until, oldest first.
func (f *Feed) Events(ctx context.Context, since, until time.Time) ([]goGuard.ForegroundEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	out := make([]goGuard.ForegroundEvent, 0, f.size)
	for i := 0; i < f.size; i++ {
		ev := f.buf[(f.start+i)%len(f.buf)]
		if ev.At.After(since) && !ev.At.After(until) {
			out = append(out, ev)
		}
	}
	f.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// Current returns the most recently pushed app.
func (f *Feed) Current(ctx context.Context) (goGuard.AppID, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current, f.has, nil
}

// Len reports the number of buffered events.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

// Dropped reports how many events were evicted because the buffer was full.
func (f *Feed) Dropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}
