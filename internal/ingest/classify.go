package ingest

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"academicbooks/aggregator/internal/fetch"
	"academicbooks/aggregator/internal/models"
)

// titlePrefixLen is how much of a title the near-duplicate gate compares.
const titlePrefixLen = 30

// isCrosscut reports whether an item belongs to the cross-cutting content
// class: its source category is listed, or its title matches a cross-cutting
// keyword.
func (e *Engine) isCrosscut(item fetch.Item, category string) bool {
	for _, c := range e.cfg.CrosscutCategories {
		if strings.EqualFold(category, c) {
			return true
		}
	}
	title := strings.ToLower(item.Title)
	for _, kw := range e.cfg.CrosscutKeywords {
		if strings.Contains(title, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// fanOut distributes a cross-cutting item across university buckets. The
// near-duplicate gate runs first and blocks the whole fan-out; an item that
// matches no university keywords is dropped entirely. Fan-out rows carry a
// bucket-qualified fingerprint and no source UID, so the same item can
// coexist once per bucket.
func (e *Engine) fanOut(ctx context.Context, item fetch.Item, srcURL, category string) {
	if item.StartAt != nil {
		dup, err := e.hasNearDuplicate(ctx, item)
		if err != nil {
			log.Warn().Err(err).Str("title", item.Title).Msg("Near-duplicate lookup failed, item dropped")
			return
		}
		if dup {
			e.skipped.Add(1)
			log.Debug().Str("title", item.Title).Msg("Near-duplicate of an existing event, fan-out skipped")
			return
		}
	}

	matched := e.classifyUniversities(item)
	if len(matched) == 0 {
		log.Debug().Str("title", item.Title).Msg("No university keywords matched, cross-cutting item dropped")
		return
	}

	display := e.displayCategory(item.Title, category)
	for _, uniName := range matched {
		hash := Fingerprint(item.Title, uniName, item.StartAt, item.LocationName) + "_" + uniName
		if err := e.upsertScoped(ctx, item, uniName, srcURL, display, hash, ""); err != nil {
			log.Warn().Err(err).Str("title", item.Title).Str("university", uniName).Msg("Fan-out upsert failed")
		}
	}
}

// classifyUniversities matches the item's text against each university's
// keyword table and returns every university that matches. Universities with
// no keywords configured never match.
func (e *Engine) classifyUniversities(item fetch.Item) []string {
	blob := strings.ToLower(strings.Join([]string{
		item.Title, item.Description, item.Organizer, item.LocationName,
	}, " "))

	var matched []string
	for _, uni := range e.cfg.Universities {
		for _, kw := range uni.Keywords {
			if strings.Contains(blob, strings.ToLower(kw)) {
				matched = append(matched, uni.Name)
				break
			}
		}
	}
	return matched
}

// displayCategory picks the category shown for a fanned-out item: the first
// keyword group that matches the title wins, in fixed priority order, before
// falling back to the source category and then the configured fallback.
func (e *Engine) displayCategory(title, sourceCategory string) string {
	lower := strings.ToLower(title)
	groups := []struct {
		name     string
		keywords []string
	}{
		{"kultura", e.cfg.CulturalKeywords},
		{"wycieczki", e.cfg.TourismKeywords},
		{"konferencje", e.cfg.ConferenceKeywords},
	}
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return g.name
			}
		}
	}
	if sourceCategory != "" {
		return sourceCategory
	}
	return e.cfg.FallbackCategory
}

// hasNearDuplicate checks published events starting within the configured
// window of the item for a same-prefix title with high token overlap.
func (e *Engine) hasNearDuplicate(ctx context.Context, item fetch.Item) (bool, error) {
	start := item.StartAt.UTC()

	var rows []models.Event
	err := e.db.SelectContext(ctx, &rows, `
		SELECT * FROM events
		WHERE status = ? AND start_at BETWEEN ? AND ?`,
		models.EventPublished, start.Add(-e.window), start.Add(e.window))
	if err != nil {
		return false, err
	}

	prefix := titlePrefix(item.Title)
	for _, row := range rows {
		if titlePrefix(row.Title) != prefix {
			continue
		}
		if titleOverlap(item.Title, row.Title) > e.overlap {
			return true, nil
		}
	}
	return false, nil
}

func titlePrefix(title string) string {
	runes := []rune(strings.ToLower(title))
	if len(runes) > titlePrefixLen {
		runes = runes[:titlePrefixLen]
	}
	return string(runes)
}

// titleOverlap is the share of whitespace tokens the two titles have in
// common, relative to the smaller token set.
func titleOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	common := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			common++
		}
	}

	denom := len(setA)
	if len(setB) < denom {
		denom = len(setB)
	}
	return float64(common) / float64(denom)
}

func tokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}
