package models

import (
	"database/sql"
	"time"
)

// Event statuses.
const (
	EventPublished  = "published"
	EventSuppressed = "suppressed"
)

// Source types an event row can originate from.
const (
	SourceTypeCalendar    = "ics"
	SourceTypeSyndication = "rss"
	SourceTypeStructured  = "jsonld"
)

// Event represents a row in the 'events' table. At most one row exists per
// (source_type, source_uid) when source_uid is set; otherwise uniqueness is
// enforced by content_hash.
type Event struct {
	ID             int64          `db:"id"`
	Title          string         `db:"title"`
	Description    sql.NullString `db:"description"`
	StartAt        time.Time      `db:"start_at"`
	EndAt          sql.NullTime   `db:"end_at"`
	AllDay         bool           `db:"all_day"`
	IsOnline       bool           `db:"is_online"`
	MeetingURL     sql.NullString `db:"meeting_url"`
	LocationName   sql.NullString `db:"location_name"`
	Address        sql.NullString `db:"address"`
	Organizer      sql.NullString `db:"organizer"`
	UniversityName string         `db:"university_name"`
	Category       sql.NullString `db:"category"`
	SourceURL      sql.NullString `db:"source_url"`
	SourceType     string         `db:"source_type"`
	SourceUID      sql.NullString `db:"source_uid"`
	ContentHash    string         `db:"content_hash"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// NullString builds a sql.NullString that is only valid for non-empty input.
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// NullTime builds a sql.NullTime from an optional timestamp.
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
