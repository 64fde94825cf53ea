package books

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"academicbooks/aggregator/internal/cache"
	"academicbooks/aggregator/internal/config"
	"academicbooks/aggregator/internal/database"
	"academicbooks/aggregator/internal/models"
)

// DefaultWorkers bounds concurrent catalog queries.
const DefaultWorkers = 8

// Service assembles per-university book listings: external catalog results
// merged with locally curated rows, deduplicated, persisted on first sight
// and served from the bucket cache while fresh.
type Service struct {
	db      *database.DB
	client  *Client
	cache   *cache.Cache
	cfg     *config.Sources
	workers int
}

// NewService wires a book service. workers <= 0 falls back to DefaultWorkers.
func NewService(db *database.DB, client *Client, c *cache.Cache, cfg *config.Sources, workers int) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{db: db, client: client, cache: c, cfg: cfg, workers: workers}
}

// BooksForUniversity returns the merged book listing for one university.
// A fresh cached snapshot short-circuits the catalog queries; ratings are
// always recomputed from stored reviews so they never go stale with the
// snapshot.
func (s *Service) BooksForUniversity(ctx context.Context, name string) ([]BookRecord, error) {
	uni := s.cfg.UniversityByName(name)
	if uni == nil {
		return nil, fmt.Errorf("university not configured: %s", name)
	}

	if snap, ok := s.cache.Get(ctx, name); ok {
		var records []BookRecord
		if err := json.Unmarshal(snap, &records); err == nil {
			if err := s.persistAndEnrich(ctx, records, name); err != nil {
				return nil, err
			}
			return records, nil
		}
		log.Warn().Str("university", name).Msg("Unreadable cache snapshot, rebuilding")
	}

	records, err := s.buildListing(ctx, uni)
	if err != nil {
		return nil, err
	}

	snap, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding book snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, name, snap); err != nil {
		log.Warn().Err(err).Str("university", name).Msg("Caching book snapshot failed")
	}

	return records, nil
}

// BooksMulti returns one merged listing across several universities. The
// per-university listings are produced concurrently; the final merge runs
// single-threaded and owns the cross-bucket deduplication set.
func (s *Service) BooksMulti(ctx context.Context, names []string) ([]BookRecord, error) {
	listings := make([][]BookRecord, len(names))

	limit := s.workers
	if len(names) < limit {
		limit = len(names)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			records, err := s.BooksForUniversity(gctx, name)
			if err != nil {
				log.Warn().Err(err).Str("university", name).Msg("University listing failed, omitted from merge")
				return nil
			}
			listings[i] = records
			return nil
		})
	}
	g.Wait()

	seen := map[string]struct{}{}
	var merged []BookRecord
	for _, records := range listings {
		for _, rec := range records {
			key := dedupKey(rec)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, rec)
		}
	}
	return merged, nil
}

// BookByGoogleID returns one book with rating aggregates. A previously
// persisted row is served from the database; an unseen volume is fetched
// from the catalog and persisted on this first sight.
func (s *Service) BookByGoogleID(ctx context.Context, googleID string) (*BookRecord, error) {
	var row models.Book
	err := s.db.GetContext(ctx, &row, `SELECT * FROM books WHERE google_id = ?`, googleID)
	switch {
	case err == nil:
		rec := recordFromRow(row)
		records := []BookRecord{rec}
		if err := s.persistAndEnrich(ctx, records, row.University.String); err != nil {
			return nil, err
		}
		return &records[0], nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("looking up book by google_id: %w", err)
	}

	rec, err := s.client.ByID(ctx, googleID)
	if err != nil {
		return nil, err
	}

	records := []BookRecord{*rec}
	if err := s.persistAndEnrich(ctx, records, ""); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// buildListing runs the configured catalog queries concurrently, merges the
// results with locally curated rows, deduplicates, persists catalog books on
// first sight and attaches rating aggregates.
func (s *Service) buildListing(ctx context.Context, uni *config.University) ([]BookRecord, error) {
	results := make([][]BookRecord, len(uni.BookQueries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, query := range uni.BookQueries {
		g.Go(func() error {
			records, err := s.client.Search(gctx, query, pageSize)
			if err != nil {
				log.Warn().Err(err).Str("query", query).Msg("Catalog query contributed nothing")
				return nil
			}
			results[i] = records
			return nil
		})
	}
	g.Wait()

	seen := map[string]struct{}{}
	var records []BookRecord
	for _, batch := range results {
		for _, rec := range batch {
			key := dedupKey(rec)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			records = append(records, rec)
		}
	}

	local, err := s.localBooks(ctx, uni.Name)
	if err != nil {
		return nil, err
	}
	for _, rec := range local {
		key := dedupKey(rec)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		records = append(records, rec)
	}

	if err := s.persistAndEnrich(ctx, records, uni.Name); err != nil {
		return nil, err
	}
	return records, nil
}

// persistAndEnrich assigns database identities to catalog records (inserting
// each google_id once, ever) and computes rating aggregates from reviews.
func (s *Service) persistAndEnrich(ctx context.Context, records []BookRecord, university string) error {
	for i := range records {
		rec := &records[i]
		if rec.ID == 0 && rec.GoogleID != "" {
			id, err := s.ensurePersisted(ctx, rec, university)
			if err != nil {
				return err
			}
			rec.ID = id
		}
		if rec.ID == 0 {
			continue
		}

		var agg struct {
			AvgRating    float64 `db:"avg_rating"`
			ReviewsCount int     `db:"reviews_count"`
		}
		err := s.db.GetContext(ctx, &agg, `
			SELECT COALESCE(AVG(rating), 0) AS avg_rating, COUNT(*) AS reviews_count
			FROM reviews WHERE book_id = ?`, rec.ID)
		if err != nil {
			return fmt.Errorf("computing rating aggregate for book %d: %w", rec.ID, err)
		}
		rec.AvgRating = agg.AvgRating
		rec.ReviewsCount = agg.ReviewsCount
	}
	return nil
}

func (s *Service) ensurePersisted(ctx context.Context, rec *BookRecord, university string) (int64, error) {
	if rec.AvailableCopies <= 0 {
		rec.AvailableCopies = 1
	}

	var id int64
	err := s.db.GetContext(ctx, &id,
		`SELECT id FROM books WHERE google_id = ?`, rec.GoogleID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up book by google_id: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			google_id, title, authors, publisher, published_date, thumbnail,
			categories, description, language, page_count, isbn,
			available_copies, university, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GoogleID, rec.Title, models.NullString(rec.Authors),
		models.NullString(rec.Publisher), models.NullString(rec.PublishedDate),
		models.NullString(rec.Thumbnail), models.NullString(strings.Join(rec.Categories, ", ")),
		models.NullString(rec.Description), models.NullString(rec.Language),
		nullInt(rec.PageCount), models.NullString(rec.ISBN),
		rec.AvailableCopies, models.NullString(university), time.Now().UTC())
	if err != nil {
		// A concurrent writer may have inserted the same google_id first.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if lookErr := s.db.GetContext(ctx, &id,
				`SELECT id FROM books WHERE google_id = ?`, rec.GoogleID); lookErr == nil {
				return id, nil
			}
		}
		return 0, fmt.Errorf("persisting book %q: %w", rec.Title, err)
	}
	return res.LastInsertId()
}

// localBooks loads user-curated rows for a university: rows without a
// google_id, created through the service rather than imported from the
// catalog.
func (s *Service) localBooks(ctx context.Context, university string) ([]BookRecord, error) {
	var rows []models.Book
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM books
		WHERE google_id IS NULL AND university = ?
		ORDER BY id`, university)
	if err != nil {
		return nil, fmt.Errorf("loading local books for %s: %w", university, err)
	}

	records := make([]BookRecord, 0, len(rows))
	for _, b := range rows {
		records = append(records, recordFromRow(b))
	}
	return records, nil
}

func recordFromRow(b models.Book) BookRecord {
	rec := BookRecord{
		ID:              b.ID,
		GoogleID:        b.GoogleID.String,
		Title:           b.Title,
		Authors:         b.Authors.String,
		Publisher:       b.Publisher.String,
		PublishedDate:   b.PublishedDate.String,
		Thumbnail:       b.Thumbnail.String,
		Description:     b.Description.String,
		Language:        b.Language.String,
		PageCount:       int(b.PageCount.Int64),
		ISBN:            b.ISBN.String,
		AvailableCopies: b.AvailableCopies,
	}
	if b.Categories.Valid && b.Categories.String != "" {
		rec.Categories = strings.Split(b.Categories.String, ", ")
	}
	return rec
}

// dedupKey identifies a book across sources: google_id when present, then
// ISBN, then the lowercased title.
func dedupKey(rec BookRecord) string {
	switch {
	case rec.GoogleID != "":
		return "g:" + rec.GoogleID
	case rec.ISBN != "":
		return "i:" + rec.ISBN
	default:
		return "t:" + strings.ToLower(rec.Title)
	}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
