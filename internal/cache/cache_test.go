package cache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"academicbooks/aggregator/internal/database"
)

func setupTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()

	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, ttl)
}

func TestCacheRoundTrip(t *testing.T) {
	c := setupTestCache(t, time.Hour)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "uni-a"); ok {
		t.Fatal("Empty cache should miss")
	}

	payload := json.RawMessage(`[{"title":"Analiza matematyczna"}]`)
	if err := c.Set(ctx, "uni-a", payload); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := c.Get(ctx, "uni-a")
	if !ok {
		t.Fatal("Expected a fresh hit")
	}
	if string(got) != string(payload) {
		t.Errorf("Snapshot = %s, want %s", got, payload)
	}

	// Keys are independent buckets.
	if _, ok := c.Get(ctx, "uni-b"); ok {
		t.Error("Other key should miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := setupTestCache(t, time.Hour)
	ctx := context.Background()

	captured := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return captured }
	if err := c.Set(ctx, "uni-a", json.RawMessage(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Just inside the TTL.
	c.now = func() time.Time { return captured.Add(time.Hour - time.Second) }
	if _, ok := c.Get(ctx, "uni-a"); !ok {
		t.Error("Snapshot just inside the TTL should hit")
	}

	// At the boundary the snapshot is stale.
	c.now = func() time.Time { return captured.Add(time.Hour) }
	if _, ok := c.Get(ctx, "uni-a"); ok {
		t.Error("Snapshot at the TTL boundary should miss")
	}
}

func TestCacheSetResetsFreshness(t *testing.T) {
	c := setupTestCache(t, time.Hour)
	ctx := context.Background()

	captured := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return captured }
	if err := c.Set(ctx, "uni-a", json.RawMessage(`["old"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c.now = func() time.Time { return captured.Add(2 * time.Hour) }
	if err := c.Set(ctx, "uni-a", json.RawMessage(`["new"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := c.Get(ctx, "uni-a")
	if !ok {
		t.Fatal("Re-set snapshot should be fresh")
	}
	if string(got) != `["new"]` {
		t.Errorf("Snapshot = %s, want [\"new\"]", got)
	}
}
