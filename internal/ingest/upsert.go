package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"academicbooks/aggregator/internal/fetch"
	"academicbooks/aggregator/internal/models"
)

// Fingerprint derives the content identity of an event: a SHA-256 over the
// lowercased title, university name, start timestamp (empty when absent) and
// location, joined with "|". Stable across imports of the same upstream data.
func Fingerprint(title, university string, startAt *time.Time, location string) string {
	stamp := ""
	if startAt != nil {
		stamp = startAt.UTC().Format(time.RFC3339)
	}
	raw := strings.Join([]string{
		strings.ToLower(title),
		strings.ToLower(university),
		stamp,
		strings.ToLower(location),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// upsertOne routes a normalized item. Cross-cutting items fan out across
// university buckets by keyword classification; everything else is filed
// under the literal source university.
func (e *Engine) upsertOne(ctx context.Context, item fetch.Item, uniName, srcURL, category string) {
	if e.isCrosscut(item, category) {
		e.fanOut(ctx, item, srcURL, category)
		return
	}

	hash := Fingerprint(item.Title, uniName, item.StartAt, item.LocationName)
	if err := e.upsertScoped(ctx, item, uniName, srcURL, category, hash, item.UID); err != nil {
		log.Warn().Err(err).Str("title", item.Title).Str("university", uniName).Msg("Upsert failed, item dropped")
	}
}

// upsertScoped inserts or updates a single event row inside its own
// transaction. Identity is resolved by source UID first, then by content
// hash. A uniqueness conflict on commit means a concurrent writer or an
// in-flight duplicate won; the item is skipped, never retried.
func (e *Engine) upsertScoped(ctx context.Context, item fetch.Item, uniName, srcURL, category, hash, uid string) error {
	tx, err := e.db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existing models.Event
	found := false

	if uid != "" {
		err = tx.GetContext(ctx, &existing,
			`SELECT * FROM events WHERE source_type = ? AND source_uid = ?`,
			string(item.Origin), uid)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("looking up event by uid: %w", err)
		}
	}
	if !found {
		err = tx.GetContext(ctx, &existing,
			`SELECT * FROM events WHERE content_hash = ?`, hash)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("looking up event by hash: %w", err)
		}
	}

	now := time.Now().UTC()
	if found {
		if err := updateEvent(ctx, tx, &existing, item, srcURL, category, hash, now); err != nil {
			if isUniqueViolation(err) {
				e.skipped.Add(1)
				log.Debug().Str("title", item.Title).Msg("Duplicate update skipped")
				return nil
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing update: %w", err)
		}
		e.updated.Add(1)
		return nil
	}

	if err := insertEvent(ctx, tx, item, uniName, srcURL, category, hash, uid, now); err != nil {
		if isUniqueViolation(err) {
			e.skipped.Add(1)
			log.Debug().Str("title", item.Title).Msg("Duplicate insert skipped")
			return nil
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			e.skipped.Add(1)
			return nil
		}
		return fmt.Errorf("committing insert: %w", err)
	}
	e.inserted.Add(1)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// updateEvent overwrites only with non-empty incoming values so a sparse
// source never erases richer data from an earlier one. Booleans and
// timestamps always follow the incoming item.
func updateEvent(ctx context.Context, tx execer, existing *models.Event, item fetch.Item, srcURL, category, hash string, now time.Time) error {
	title := existing.Title
	if item.Title != "" && item.Title != fetch.Untitled {
		title = item.Title
	}
	description := pickString(existing.Description, item.Description)
	meetingURL := pickString(existing.MeetingURL, item.MeetingURL)
	locationName := pickString(existing.LocationName, item.LocationName)
	address := pickString(existing.Address, item.Address)
	organizer := pickString(existing.Organizer, item.Organizer)
	cat := pickString(existing.Category, category)
	src := pickString(existing.SourceURL, srcURL)

	startAt := existing.StartAt
	if item.StartAt != nil {
		startAt = item.StartAt.UTC()
	}
	endAt := existing.EndAt
	if item.EndAt != nil {
		endAt = models.NullTime(item.EndAt)
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE events SET
			title = ?, description = ?, start_at = ?, end_at = ?,
			all_day = ?, is_online = ?, meeting_url = ?, location_name = ?,
			address = ?, organizer = ?, category = ?, source_url = ?,
			content_hash = ?, updated_at = ?
		WHERE id = ?`,
		title, description, startAt, endAt,
		item.AllDay, item.IsOnline, meetingURL, locationName,
		address, organizer, cat, src,
		hash, now,
		existing.ID)
	if err != nil {
		return fmt.Errorf("updating event %d: %w", existing.ID, err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx execer, item fetch.Item, uniName, srcURL, category, hash, uid string, now time.Time) error {
	startAt := now
	if item.StartAt != nil {
		startAt = item.StartAt.UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (
			title, description, start_at, end_at, all_day, is_online,
			meeting_url, location_name, address, organizer,
			university_name, category, source_url, source_type, source_uid,
			content_hash, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Title, models.NullString(item.Description), startAt, models.NullTime(item.EndAt),
		item.AllDay, item.IsOnline,
		models.NullString(item.MeetingURL), models.NullString(item.LocationName),
		models.NullString(item.Address), models.NullString(item.Organizer),
		uniName, models.NullString(category), models.NullString(srcURL),
		string(item.Origin), models.NullString(uid),
		hash, models.EventPublished, now, now)
	if err != nil {
		return fmt.Errorf("inserting event %q: %w", item.Title, err)
	}
	return nil
}

// pickString keeps the stored value unless the incoming one is non-empty.
func pickString(current sql.NullString, incoming string) sql.NullString {
	if incoming != "" {
		return models.NullString(incoming)
	}
	return current
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
