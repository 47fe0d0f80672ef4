package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/storage"
	"github.com/MrEthical07/goGuard/storage/storagetest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "test"), mr
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, _ := newRedisStoreTest(t)
		return s
	})
}

func TestStoreKeyLayout(t *testing.T) {
	s, mr := newRedisStoreTest(t)
	ctx := context.Background()

	if err := s.Add(ctx, "com.bank"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Put(ctx, "com.bank", time.UnixMilli(1234)); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := mr.SIsMember("test:locked", "com.bank")
	if err != nil || !ok {
		t.Fatalf("expected SET member, ok=%v err=%v", ok, err)
	}
	raw := mr.HGet("test:grants", "com.bank")
	at, err := storage.DecodeGrant([]byte(raw))
	if err != nil {
		t.Fatalf("decode stored grant: %v", err)
	}
	if at.UnixMilli() != 1234 {
		t.Fatalf("expected 1234ms, got %d", at.UnixMilli())
	}
}

func TestStoreCorruptGrant(t *testing.T) {
	s, mr := newRedisStoreTest(t)
	mr.HSet("test:grants", "com.bank", "garbage")

	if _, _, err := s.Get(context.Background(), "com.bank"); !errors.Is(err, storage.ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestStoreWrapsBackendFailure(t *testing.T) {
	s, mr := newRedisStoreTest(t)
	mr.Close()

	if _, err := s.Contains(context.Background(), "com.bank"); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := s.Clear(context.Background()); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
