// Package storagetest holds the behavioral checks every storage backend must pass.
package storagetest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/storage"
)

// Run exercises a fresh store returned by newStore against the shared contract.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("RegistryMembership", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ok, err := s.Contains(ctx, "com.bank")
		if err != nil {
			t.Fatalf("contains: %v", err)
		}
		if ok {
			t.Fatal("empty registry reported membership")
		}
		if err := s.Add(ctx, "com.bank"); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.Add(ctx, "com.bank"); err != nil {
			t.Fatalf("second add: %v", err)
		}
		ok, err = s.Contains(ctx, "com.bank")
		if err != nil || !ok {
			t.Fatalf("expected membership, got ok=%v err=%v", ok, err)
		}
		all, err := s.All(ctx)
		if err != nil {
			t.Fatalf("all: %v", err)
		}
		if len(all) != 1 || all[0] != "com.bank" {
			t.Fatalf("unexpected registry contents %v", all)
		}
	})

	t.Run("RemoveDropsGrant", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Add(ctx, "com.mail"); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.Put(ctx, "com.mail", time.UnixMilli(42_000)); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := s.Remove(ctx, "com.mail"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := s.Remove(ctx, "com.mail"); err != nil {
			t.Fatalf("second remove: %v", err)
		}
		ok, err := s.Contains(ctx, "com.mail")
		if err != nil || ok {
			t.Fatalf("expected removal, got ok=%v err=%v", ok, err)
		}
		if _, found, err := s.Get(ctx, "com.mail"); err != nil || found {
			t.Fatalf("expected grant dropped, found=%v err=%v", found, err)
		}
	})

	t.Run("ReplaceSwapsSet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Add(ctx, "old"); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.Replace(ctx, []string{"b", "a", "b"}); err != nil {
			t.Fatalf("replace: %v", err)
		}
		all, err := s.All(ctx)
		if err != nil {
			t.Fatalf("all: %v", err)
		}
		sort.Strings(all)
		if len(all) != 2 || all[0] != "a" || all[1] != "b" {
			t.Fatalf("unexpected registry contents %v", all)
		}
		if err := s.Replace(ctx, nil); err != nil {
			t.Fatalf("replace empty: %v", err)
		}
		all, err = s.All(ctx)
		if err != nil || len(all) != 0 {
			t.Fatalf("expected empty registry, got %v err=%v", all, err)
		}
	})

	t.Run("GrantRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, found, err := s.Get(ctx, "com.chat"); err != nil || found {
			t.Fatalf("expected absent grant, found=%v err=%v", found, err)
		}
		at := time.UnixMilli(1_700_000_000_250)
		if err := s.Put(ctx, "com.chat", at); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, found, err := s.Get(ctx, "com.chat")
		if err != nil || !found {
			t.Fatalf("expected grant, found=%v err=%v", found, err)
		}
		if !got.Equal(at) {
			t.Fatalf("expected %v, got %v", at, got)
		}
		if err := s.Delete(ctx, "com.chat"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, found, _ := s.Get(ctx, "com.chat"); found {
			t.Fatal("grant survived delete")
		}
	})

	t.Run("ClearRemovesAllGrantsOnly", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, app := range []string{"a", "b", "c"} {
			if err := s.Add(ctx, app); err != nil {
				t.Fatalf("add %s: %v", app, err)
			}
			if err := s.Put(ctx, app, time.UnixMilli(1000)); err != nil {
				t.Fatalf("put %s: %v", app, err)
			}
		}
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("second clear: %v", err)
		}
		for _, app := range []string{"a", "b", "c"} {
			if _, found, err := s.Get(ctx, app); err != nil || found {
				t.Fatalf("grant for %s survived clear: found=%v err=%v", app, found, err)
			}
			if ok, err := s.Contains(ctx, app); err != nil || !ok {
				t.Fatalf("clear touched registry for %s: ok=%v err=%v", app, ok, err)
			}
		}
	})

	t.Run("RejectsInvalidIdentifiers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Add(ctx, ""); !errors.Is(err, storage.ErrInvalidAppID) {
			t.Fatalf("expected ErrInvalidAppID from Add, got %v", err)
		}
		if err := s.Put(ctx, "", time.Now()); !errors.Is(err, storage.ErrInvalidAppID) {
			t.Fatalf("expected ErrInvalidAppID from Put, got %v", err)
		}
		if err := s.Replace(ctx, []string{"ok", ""}); !errors.Is(err, storage.ErrInvalidAppID) {
			t.Fatalf("expected ErrInvalidAppID from Replace, got %v", err)
		}
	})
}
