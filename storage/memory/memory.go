// Package memory is an in-process [storage.Store] guarded by a read-write mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/storage"
)

// Store keeps the locked set and grant table in maps.
type Store struct {
	mu     sync.RWMutex
	locked map[string]struct{}
	grants map[string]time.Time
}

// New returns a store seeded with the given locked apps.
func New(locked ...string) *Store {
	s := &Store{
		locked: make(map[string]struct{}, len(locked)),
		grants: make(map[string]time.Time),
	}
	for _, app := range locked {
		if storage.ValidateAppID(app) == nil {
			s.locked[app] = struct{}{}
		}
	}
	return s
}

func (s *Store) Contains(_ context.Context, app string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.locked[app]
	return ok, nil
}

func (s *Store) All(context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.locked))
	for app := range s.locked {
		out = append(out, app)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *Store) Add(_ context.Context, app string) error {
	if err := storage.ValidateAppID(app); err != nil {
		return err
	}
	s.mu.Lock()
	s.locked[app] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) Remove(_ context.Context, app string) error {
	s.mu.Lock()
	delete(s.locked, app)
	delete(s.grants, app)
	s.mu.Unlock()
	return nil
}

func (s *Store) Replace(_ context.Context, apps []string) error {
	apps, err := storage.Normalize(apps)
	if err != nil {
		return err
	}
	next := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		next[app] = struct{}{}
	}
	s.mu.Lock()
	s.locked = next
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(_ context.Context, app string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.grants[app]
	return at, ok, nil
}

func (s *Store) Put(_ context.Context, app string, at time.Time) error {
	if err := storage.ValidateAppID(app); err != nil {
		return err
	}
	s.mu.Lock()
	s.grants[app] = time.UnixMilli(at.UnixMilli())
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, app string) error {
	s.mu.Lock()
	delete(s.grants, app)
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	s.grants = make(map[string]time.Time)
	s.mu.Unlock()
	return nil
}

var _ storage.Store = (*Store)(nil)
