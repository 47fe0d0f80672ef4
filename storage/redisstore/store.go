// Package redisstore persists the locked set and grant table in Redis.
//
// The locked set is a Redis SET at "<prefix>:locked"; grants are a HASH at
// "<prefix>:grants" whose values use [storage.EncodeGrant]. Multi-key updates run in
// MULTI/EXEC pipelines so a reader never sees a removed app with a surviving grant.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goGuard/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is used when NewStore receives an empty prefix.
const DefaultPrefix = "gg"

// Store implements [storage.Store] on a go-redis client.
type Store struct {
	redis     redis.UniversalClient
	lockedKey string
	grantsKey string
}

// NewStore binds a store to client under the given key prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:     client,
		lockedKey: prefix + ":locked",
		grantsKey: prefix + ":grants",
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
}

func (s *Store) Contains(ctx context.Context, app string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, s.lockedKey, app).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (s *Store) All(ctx context.Context) ([]string, error) {
	apps, err := s.redis.SMembers(ctx, s.lockedKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sort.Strings(apps)
	return apps, nil
}

func (s *Store) Add(ctx context.Context, app string) error {
	if err := storage.ValidateAppID(app); err != nil {
		return err
	}
	if err := s.redis.SAdd(ctx, s.lockedKey, app).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, app string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.lockedKey, app)
		pipe.HDel(ctx, s.grantsKey, app)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, apps []string) error {
	apps, err := storage.Normalize(apps)
	if err != nil {
		return err
	}
	members := make([]interface{}, len(apps))
	for i, app := range apps {
		members[i] = app
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.lockedKey)
		if len(members) > 0 {
			pipe.SAdd(ctx, s.lockedKey, members...)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, app string) (time.Time, bool, error) {
	raw, err := s.redis.HGet(ctx, s.grantsKey, app).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, unavailable(err)
	}
	at, err := storage.DecodeGrant(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (s *Store) Put(ctx context.Context, app string, at time.Time) error {
	if err := storage.ValidateAppID(app); err != nil {
		return err
	}
	if err := s.redis.HSet(ctx, s.grantsKey, app, storage.EncodeGrant(at)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, app string) error {
	if err := s.redis.HDel(ctx, s.grantsKey, app).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.grantsKey).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
