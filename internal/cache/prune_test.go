package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"reelgen/internal/logging"
	"reelgen/internal/testsupport"
)

func TestPruneBySizeDropsOldestEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()

	// Small byte budget and no free-space pressure for the test.
	store.maxBytes = 1000
	store.statfs = func(string) (uint64, uint64, error) { return 100, 50, nil }

	ctx := context.Background()
	old := Entry{
		Fingerprint: "fp-old",
		Stage:       "audio",
		Payload:     json.RawMessage(`{}`),
		SizeBytes:   800,
		CreatedAt:   time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := store.Put(ctx, old); err != nil {
		t.Fatalf("put old: %v", err)
	}
	fresh := Entry{
		Fingerprint: "fp-new",
		Stage:       "audio",
		Payload:     json.RawMessage(`{}`),
		SizeBytes:   600,
	}
	if err := store.Put(ctx, fresh); err != nil {
		t.Fatalf("put new: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "fp-old"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if _, ok, _ := store.Get(ctx, "fp-new"); !ok {
		t.Fatal("expected newest entry to survive")
	}
}

func TestPruneByAgeDropsExpiredEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()
	store.maxAge = time.Hour
	store.statfs = func(string) (uint64, uint64, error) { return 100, 50, nil }

	ctx := context.Background()
	expired := Entry{
		Fingerprint: "fp-expired",
		Stage:       "script",
		Payload:     json.RawMessage(`{}`),
		CreatedAt:   time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := store.Put(ctx, expired); err != nil {
		t.Fatalf("put expired: %v", err)
	}

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "fp-expired"); ok {
		t.Fatal("expected expired entry to be evicted")
	}
}
