package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academicbooks/aggregator/internal/database"
	"academicbooks/aggregator/internal/models"
)

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("event not found")

// ListFilter narrows an event listing. Cursor fields, when set, resume a
// previous page; all other fields are optional filters.
type ListFilter struct {
	Limit      int
	University string
	Category   string
	Online     *bool
	Query      string
	From       *time.Time
	To         *time.Time

	CursorStart *time.Time
	CursorID    *int64
}

// EventRepository defines read access to stored events.
type EventRepository interface {
	ListEvents(ctx context.Context, filter ListFilter) ([]models.Event, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
}

type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a repository over an existing database connection.
func NewRepository(db *database.DB) EventRepository {
	return &sqlxRepository{db: db}
}

// ListEvents returns published events ordered by start time. Ordering must
// stay (start_at ASC, id ASC) for cursor pagination to resume correctly.
func (r *sqlxRepository) ListEvents(ctx context.Context, filter ListFilter) ([]models.Event, error) {
	query := `SELECT * FROM events WHERE status = ?`
	args := []any{models.EventPublished}

	if filter.University != "" {
		query += ` AND university_name = ?`
		args = append(args, filter.University)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Online != nil {
		query += ` AND is_online = ?`
		args = append(args, *filter.Online)
	}
	if filter.Query != "" {
		query += ` AND (title LIKE ? OR description LIKE ?)`
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern)
	}
	if filter.From != nil {
		query += ` AND start_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += ` AND start_at < ?`
		args = append(args, filter.To.UTC())
	}
	if filter.CursorStart != nil && filter.CursorID != nil {
		query += ` AND ((start_at > ?) OR (start_at = ? AND id > ?))`
		args = append(args, filter.CursorStart.UTC(), filter.CursorStart.UTC(), *filter.CursorID)
	}

	query += ` ORDER BY start_at ASC, id ASC LIMIT ?`
	args = append(args, filter.Limit)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Event{}, nil
		}
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// GetEvent returns one event by ID, regardless of status.
func (r *sqlxRepository) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := r.db.GetContext(ctx, &event, `SELECT * FROM events WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading event %d: %w", id, err)
	}
	return &event, nil
}
