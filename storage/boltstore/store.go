// Package boltstore persists the locked set and grant table in a bbolt file, the on-device
// backend used by the daemon.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/storage"
	"go.etcd.io/bbolt"
)

var (
	lockedBucket = []byte("locked")
	grantsBucket = []byte("grants")
)

// Store implements [storage.Store] on a bbolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

// New returns a Store on db, creating its buckets if needed.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(lockedBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(grantsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromFile opens a bbolt database at path and returns a Store on it.
func NewFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func wrap(err error) error {
	if err == nil || errors.Is(err, storage.ErrInvalidAppID) || errors.Is(err, storage.ErrCorruptRecord) {
		return err
	}
	return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
}

func (s *Store) Contains(_ context.Context, app string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(lockedBucket).Get([]byte(app)) != nil
		return nil
	})
	return ok, wrap(err)
}

func (s *Store) All(context.Context) ([]string, error) {
	var apps []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(lockedBucket).ForEach(func(k, _ []byte) error {
			apps = append(apps, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, wrap(err)
	}
	if apps == nil {
		apps = []string{}
	}
	return apps, nil
}

func (s *Store) Add(_ context.Context, app string) error {
	if err := storage.ValidateAppID(app); err != nil {
		return err
	}
	return wrap(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(lockedBucket).Put([]byte(app), []byte{1})
	}))
}

func (s *Store) Remove(_ context.Context, app string) error {
	if app == "" {
		return nil
	}
	return wrap(s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(lockedBucket).Delete([]byte(app)); err != nil {
			return err
		}
		return tx.Bucket(grantsBucket).Delete([]byte(app))
	}))
}

func (s *Store) Replace(_ context.Context, apps []string) error {
	apps, err := storage.Normalize(apps)
	if err != nil {
		return err
	}
	return wrap(s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(lockedBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(lockedBucket)
		if err != nil {
			return err
		}
		for _, app := range apps {
			if err := b.Put([]byte(app), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *Store) Get(_ context.Context, app string) (time.Time, bool, error) {
	var (
		at    time.Time
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(grantsBucket).Get([]byte(app))
		if data == nil {
			return nil
		}
		decoded, err := storage.DecodeGrant(data)
		if err != nil {
			return err
		}
		at, found = decoded, true
		return nil
	})
	if err != nil {
		return time.Time{}, false, wrap(err)
	}
	return at, found, nil
}

func (s *Store) Put(_ context.Context, app string, at time.Time) error {
	if err := storage.ValidateAppID(app); err != nil {
		return err
	}
	return wrap(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(grantsBucket).Put([]byte(app), storage.EncodeGrant(at))
	}))
}

func (s *Store) Delete(_ context.Context, app string) error {
	if app == "" {
		return nil
	}
	return wrap(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(grantsBucket).Delete([]byte(app))
	}))
}

func (s *Store) Clear(context.Context) error {
	return wrap(s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(grantsBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(grantsBucket)
		return err
	}))
}
