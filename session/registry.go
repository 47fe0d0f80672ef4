package session

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrInFlight is returned by [Registry.Begin] when the app already has a live session.
var ErrInFlight = errors.New("session already in flight")

// Registry indexes live sessions by app and by ID.
type Registry struct {
	seq   uint64
	byApp map[string]*Session
	byID  map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byApp: make(map[string]*Session),
		byID:  make(map[string]*Session),
	}
}

// Begin creates an Announced session for app with the next sequence number.
func (r *Registry) Begin(app string, now time.Time) (*Session, error) {
	if _, ok := r.byApp[app]; ok {
		return nil, ErrInFlight
	}
	r.seq++
	s := &Session{
		ID:        uuid.NewString(),
		Seq:       r.seq,
		App:       app,
		CreatedAt: now,
	}
	if err := s.Transition(Announced); err != nil {
		return nil, err
	}
	r.byApp[app] = s
	r.byID[s.ID] = s
	return s, nil
}

// Get returns the live session for app.
func (r *Registry) Get(app string) (*Session, bool) {
	s, ok := r.byApp[app]
	return s, ok
}

// Lookup returns the live session with the given ID.
func (r *Registry) Lookup(id string) (*Session, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// InFlight reports whether app has a live session.
func (r *Registry) InFlight(app string) bool {
	_, ok := r.byApp[app]
	return ok
}

// Live returns live sessions ordered by sequence number.
func (r *Registry) Live() []*Session {
	out := make([]*Session, 0, len(r.byApp))
	for _, s := range r.byApp {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// End removes s from the registry. Ending a session that was already replaced is a no-op.
func (r *Registry) End(s *Session) {
	if cur, ok := r.byApp[s.App]; ok && cur == s {
		delete(r.byApp, s.App)
	}
	if cur, ok := r.byID[s.ID]; ok && cur == s {
		delete(r.byID, s.ID)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.byApp)
}

// LastSeq returns the most recently issued sequence number.
func (r *Registry) LastSeq() uint64 {
	return r.seq
}
