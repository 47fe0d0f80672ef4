package storage

import (
	"context"
	"errors"
	"time"
)

// MaxAppIDLength bounds identifiers accepted by every backend.
const MaxAppIDLength = 255

var (
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalidAppID is returned for empty or oversized identifiers.
	ErrInvalidAppID = errors.New("invalid app identifier")
	// ErrCorruptRecord is returned when a persisted grant cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt grant record")
)

// Registry is the authoritative set of protected application identifiers.
type Registry interface {
	Contains(ctx context.Context, app string) (bool, error)
	All(ctx context.Context) ([]string, error)
	Add(ctx context.Context, app string) error
	// Remove deletes app from the set and drops any grant recorded for it.
	Remove(ctx context.Context, app string) error
	// Replace swaps the whole set atomically.
	Replace(ctx context.Context, apps []string) error
}

// Grants maps an application identifier to the time of its last successful
// authentication. A missing entry is reported as ok=false.
type Grants interface {
	Get(ctx context.Context, app string) (time.Time, bool, error)
	Put(ctx context.Context, app string, at time.Time) error
	Delete(ctx context.Context, app string) error
	Clear(ctx context.Context) error
}

// Store is implemented by backends that hold both tables.
type Store interface {
	Registry
	Grants
}

// ValidateAppID rejects identifiers no backend can hold.
func ValidateAppID(app string) error {
	if app == "" || len(app) > MaxAppIDLength {
		return ErrInvalidAppID
	}
	return nil
}

// Normalize validates apps and returns them deduplicated, preserving first-seen order.
func Normalize(apps []string) ([]string, error) {
	seen := make(map[string]struct{}, len(apps))
	out := make([]string, 0, len(apps))
	for _, app := range apps {
		if err := ValidateAppID(app); err != nil {
			return nil, err
		}
		if _, ok := seen[app]; ok {
			continue
		}
		seen[app] = struct{}{}
		out = append(out, app)
	}
	return out, nil
}
