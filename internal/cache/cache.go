// Package cache provides a database-backed snapshot cache with a fixed TTL,
// keyed by bucket. Snapshots are opaque JSON payloads; the cache never
// inspects them.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"academicbooks/aggregator/internal/database"
)

// DefaultTTL is how long a snapshot stays fresh unless configured otherwise.
const DefaultTTL = 48 * time.Hour

// Cache stores one JSON snapshot per bucket key in the bucket_cache table.
// An expired or missing entry is a miss; expired rows are overwritten on the
// next Set, never eagerly purged.
type Cache struct {
	db  *database.DB
	ttl time.Duration
	now func() time.Time
}

// New creates a cache over an existing database connection. A non-positive
// ttl falls back to DefaultTTL.
func New(db *database.DB, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}
}

// Get returns the snapshot for key if one exists and is still fresh.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	var row struct {
		Snapshot   []byte    `db:"snapshot"`
		CapturedAt time.Time `db:"captured_at"`
	}
	err := c.db.GetContext(ctx, &row,
		`SELECT snapshot, captured_at FROM bucket_cache WHERE bucket_key = ?`, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		}
		return nil, false
	}

	if c.now().UTC().Sub(row.CapturedAt.UTC()) >= c.ttl {
		return nil, false
	}
	return json.RawMessage(row.Snapshot), true
}

// Set stores a snapshot for key, replacing any previous one and resetting
// the capture time.
func (c *Cache) Set(ctx context.Context, key string, snapshot json.RawMessage) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO bucket_cache (bucket_key, snapshot, captured_at)
		VALUES (?, ?, ?)
		ON CONFLICT(bucket_key) DO UPDATE SET
			snapshot = excluded.snapshot,
			captured_at = excluded.captured_at`,
		key, []byte(snapshot), c.now().UTC())
	if err != nil {
		return fmt.Errorf("storing cache snapshot for %s: %w", key, err)
	}
	return nil
}
