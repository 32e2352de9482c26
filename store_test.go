package main

import (
	"context"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		bind:           "127.0.0.1",
		dbPath:         ":memory:",
		fakePostTTL:    7 * 24 * time.Hour,
		port:           8080,
		rounds:         10,
		sessionTTL:     24 * time.Hour,
		truthPostTTL:   time.Hour,
		truthPostSweep: 5 * time.Hour,
	}
}

func newTestStore(t *testing.T) *TrackingStore {
	t.Helper()

	store, err := newTrackingStore(testConfig())
	if err != nil {
		t.Fatalf("newTrackingStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := store.Set(ctx, "key", "first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "key", "second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	value, ok, err := store.Get(ctx, "key")
	if err != nil || !ok {
		t.Fatalf("Get(key) = ok=%v err=%v, want present", ok, err)
	}
	if value != "second" {
		t.Errorf("Get(key) = %q, want %q", value, "second")
	}

	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Error("Get after Delete still present")
	}

	if err := store.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete of absent key: %v", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Expire(ctx, "key", time.Hour); err != nil {
		t.Fatalf("Expire: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "key"); !ok {
		t.Fatal("key absent before deadline")
	}

	current = current.Add(30 * time.Minute)
	if _, ok, _ := store.Get(ctx, "key"); !ok {
		t.Fatal("key absent halfway to deadline")
	}

	// Refreshing the expiry pushes the deadline out.
	if err := store.Expire(ctx, "key", time.Hour); err != nil {
		t.Fatalf("Expire refresh: %v", err)
	}
	current = current.Add(45 * time.Minute)
	if _, ok, _ := store.Get(ctx, "key"); !ok {
		t.Fatal("key absent after refreshed expiry")
	}

	current = current.Add(time.Hour)
	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Fatal("key still present after deadline")
	}

	// Overwriting an expired key resurrects it without an expiry.
	if err := store.Set(ctx, "key", "fresh"); err != nil {
		t.Fatalf("Set after expiry: %v", err)
	}
	current = current.Add(1000 * time.Hour)
	if value, ok, _ := store.Get(ctx, "key"); !ok || value != "fresh" {
		t.Fatalf("Get after resurrect = %q ok=%v, want fresh/present", value, ok)
	}
}

func TestStoreSetPreservesExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Expire(ctx, "key", time.Hour); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if err := store.Set(ctx, "key", "updated"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Error("overwrite cleared the expiry")
	}
}

func TestStoreErrorsAfterClose(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := store.Set(ctx, "key", "value"); err == nil {
		t.Error("Set on closed store did not error")
	}
	if _, _, err := store.Get(ctx, "key"); err == nil {
		t.Error("Get on closed store did not error")
	}
}
