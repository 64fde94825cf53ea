package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"academicbooks/aggregator/internal/config"
	"academicbooks/aggregator/internal/database"
	"academicbooks/aggregator/internal/discover"
	"academicbooks/aggregator/internal/fetch"
)

// Calibration defaults for the global near-duplicate gate. Both values are
// empirically chosen; the YAML configuration can override them.
const (
	DefaultTitleOverlap        = 0.7
	DefaultNearDuplicateWindow = time.Hour
	defaultFetchTimeout        = 8 * time.Second
	defaultFetchConcurrency    = 4
)

// Options tune the engine. Zero values fall back to the defaults above.
type Options struct {
	FetchTimeout        time.Duration
	FetchConcurrency    int
	TitleOverlap        float64
	NearDuplicateWindow time.Duration
}

// Engine populates and refreshes persisted events for configured
// universities. Feed and page downloads within a bucket may fan out
// concurrently, but every parse/upsert runs one item at a time against a
// single database session.
type Engine struct {
	db     *database.DB
	cfg    *config.Sources
	disc   *discover.Discoverer
	client *http.Client

	overlap          float64
	window           time.Duration
	fetchConcurrency int

	inserted atomic.Int64
	updated  atomic.Int64
	skipped  atomic.Int64
}

// NewEngine creates an engine over an existing database connection.
func NewEngine(db *database.DB, cfg *config.Sources, opts Options) *Engine {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = defaultFetchConcurrency
	}
	if opts.TitleOverlap <= 0 {
		opts.TitleOverlap = cfg.TitleOverlap
	}
	if opts.TitleOverlap <= 0 {
		opts.TitleOverlap = DefaultTitleOverlap
	}
	if opts.NearDuplicateWindow <= 0 {
		opts.NearDuplicateWindow = cfg.NearDuplicateWindow()
	}
	if opts.NearDuplicateWindow <= 0 {
		opts.NearDuplicateWindow = DefaultNearDuplicateWindow
	}

	return &Engine{
		db:               db,
		cfg:              cfg,
		disc:             discover.New(opts.FetchTimeout),
		client:           fetch.NewHTTPClient(opts.FetchTimeout),
		overlap:          opts.TitleOverlap,
		window:           opts.NearDuplicateWindow,
		fetchConcurrency: opts.FetchConcurrency,
	}
}

// Stats returns upsert counters for the lifetime of the engine.
func (e *Engine) Stats() (inserted, updated, skipped int64) {
	return e.inserted.Load(), e.updated.Load(), e.skipped.Load()
}

// ImportAll imports events for every configured university, sequentially.
// A failure in one university never aborts the others.
func (e *Engine) ImportAll(ctx context.Context) error {
	for _, uni := range e.cfg.Universities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.ImportUniversity(ctx, uni.Name); err != nil {
			log.Error().Err(err).Str("university", uni.Name).Msg("University import failed")
		}
	}
	return nil
}

// ImportUniversity imports events from every source configured for one
// university. Safe to re-run: unchanged upstream data converges to the same
// rows.
func (e *Engine) ImportUniversity(ctx context.Context, name string) error {
	uni := e.cfg.UniversityByName(name)
	if uni == nil {
		return fmt.Errorf("university not configured: %s", name)
	}

	start := time.Now()
	insBefore, updBefore, skipBefore := e.Stats()
	for _, src := range uni.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch src.Kind {
		case config.SourceCalendar:
			items, err := fetch.FetchCalendar(ctx, e.client, src.URL)
			if err != nil {
				log.Warn().Err(err).Str("url", src.URL).Msg("Calendar source contributed nothing")
				continue
			}
			e.upsertAll(ctx, items, uni.Name, src.URL, src.Category)

		case config.SourceSyndication:
			items, err := fetch.FetchFeed(ctx, e.client, src.URL)
			if err != nil {
				log.Warn().Err(err).Str("url", src.URL).Msg("Feed source contributed nothing")
				continue
			}
			e.upsertAll(ctx, items, uni.Name, src.URL, src.Category)

		case config.SourceDiscover:
			e.importDiscovered(ctx, uni.Name, src)

		default:
			log.Warn().Str("kind", string(src.Kind)).Str("url", src.URL).Msg("Unknown source kind, skipping")
		}
	}

	inserted, updated, skipped := e.Stats()
	log.Info().
		Str("university", name).
		Int64("inserted", inserted-insBefore).
		Int64("updated", updated-updBefore).
		Int64("skipped", skipped-skipBefore).
		Dur("duration", time.Since(start)).
		Msg("University import finished")
	return nil
}

// importDiscovered runs discovery on the source page, processes everything
// found, then recurses once (and only once) into each detail page.
func (e *Engine) importDiscovered(ctx context.Context, uniName string, src config.Source) {
	found := e.disc.Discover(ctx, src.URL)

	for _, batch := range e.fetchCalendars(ctx, found.CalendarURLs) {
		e.upsertAll(ctx, batch.items, uniName, batch.srcURL, src.Category)
	}
	for _, obj := range found.StructuredEvents {
		e.upsertOne(ctx, fetch.StructuredItem(obj), uniName, src.URL, src.Category)
	}

	for i, sub := range e.discoverPages(ctx, found.DetailPages) {
		pageURL := found.DetailPages[i]
		for _, batch := range e.fetchCalendars(ctx, sub.CalendarURLs) {
			e.upsertAll(ctx, batch.items, uniName, batch.srcURL, src.Category)
		}
		for _, obj := range sub.StructuredEvents {
			e.upsertOne(ctx, fetch.StructuredItem(obj), uniName, pageURL, src.Category)
		}
	}
}

type calendarBatch struct {
	srcURL string
	items  []fetch.Item
}

// fetchCalendars downloads a group of calendar URLs concurrently, bounded
// by the configured fan-out limit. Failing URLs contribute empty batches.
func (e *Engine) fetchCalendars(ctx context.Context, urls []string) []calendarBatch {
	batches := make([]calendarBatch, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fetchConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			items, err := fetch.FetchCalendar(gctx, e.client, u)
			if err != nil {
				log.Debug().Err(err).Str("url", u).Msg("Discovered calendar fetch failed")
				return nil
			}
			batches[i] = calendarBatch{srcURL: u, items: items}
			return nil
		})
	}
	g.Wait()

	out := batches[:0]
	for _, b := range batches {
		if len(b.items) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// discoverPages probes detail pages concurrently (bounded); results come
// back indexed to the input so upserts can stay sequential.
func (e *Engine) discoverPages(ctx context.Context, pages []string) []discover.Result {
	results := make([]discover.Result, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fetchConcurrency)
	for i, p := range pages {
		g.Go(func() error {
			results[i] = e.disc.Discover(gctx, p)
			return nil
		})
	}
	g.Wait()

	return results
}

func (e *Engine) upsertAll(ctx context.Context, items []fetch.Item, uniName, srcURL, category string) {
	for _, item := range items {
		e.upsertOne(ctx, item, uniName, srcURL, category)
	}
}
