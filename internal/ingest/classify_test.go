package ingest

import (
	"context"
	"testing"
	"time"

	"academicbooks/aggregator/internal/fetch"
	"academicbooks/aggregator/internal/models"
)

func TestIsCrosscut(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name     string
		title    string
		category string
		want     bool
	}{
		{"listed category", "Spektakl wieczorny", "bilety", true},
		{"city prefix keyword", "Kraków | Noc Muzeów", "", true},
		{"keyword inside title", "Ostatnie bilety na koncert", "", true},
		{"plain university event", "Seminarium z fizyki", "ogólne", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.isCrosscut(fetch.Item{Title: tt.title}, tt.category)
			if got != tt.want {
				t.Errorf("isCrosscut(%q, %q) = %v, want %v", tt.title, tt.category, got, tt.want)
			}
		})
	}
}

func TestDisplayCategory(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		title          string
		sourceCategory string
		want           string
	}{
		{"Koncert symfoniczny", "", "kultura"},
		{"Wycieczka po Kazimierzu", "", "wycieczki"},
		{"Wykład gościnny", "", "konferencje"},
		// Cultural keywords outrank conference keywords.
		{"Koncert i wykład", "", "kultura"},
		{"Spotkanie integracyjne", "sport", "sport"},
		{"Spotkanie integracyjne", "", "ogólne"},
	}
	for _, tt := range tests {
		if got := e.displayCategory(tt.title, tt.sourceCategory); got != tt.want {
			t.Errorf("displayCategory(%q, %q) = %q, want %q", tt.title, tt.sourceCategory, got, tt.want)
		}
	}
}

func TestTitleOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"koncert muzyki dawnej", "koncert muzyki dawnej", 1},
		{"koncert muzyki dawnej", "wieczór poezji", 0},
		{"a b c d", "a b", 1}, // relative to the smaller set
		{"", "koncert", 0},
	}
	for _, tt := range tests {
		if got := titleOverlap(tt.a, tt.b); got != tt.want {
			t.Errorf("titleOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClassifyUniversities(t *testing.T) {
	e := newTestEngine(t)

	item := fetch.Item{
		Title:       "Kraków | Debata o gospodarce",
		Description: "Rozmowa o ekonomii i finansach miasta.",
	}
	matched := e.classifyUniversities(item)
	if len(matched) != 1 || matched[0] != "Akademia Handlowa" {
		t.Fatalf("Expected only Akademia Handlowa, got %v", matched)
	}

	both := fetch.Item{Title: "Fizyka i ekonomia w praktyce"}
	if matched := e.classifyUniversities(both); len(matched) != 2 {
		t.Fatalf("Expected two universities, got %v", matched)
	}

	none := fetch.Item{Title: "Spotkanie absolwentów"}
	if matched := e.classifyUniversities(none); len(matched) != 0 {
		t.Fatalf("Expected no match, got %v", matched)
	}
}

func TestFanOutCreatesRowPerMatchedUniversity(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	start := time.Date(2026, 6, 5, 19, 0, 0, 0, time.UTC)
	item := fetch.Item{
		Origin:      fetch.OriginStructured,
		Title:       "Kraków | Wystawa: fizyka i ekonomia codzienności",
		Description: "Interdyscyplinarna wystawa.",
		StartAt:     &start,
	}

	e.upsertOne(ctx, item, "Szkoła Bez Słów", "https://example.com/page", "bilety")

	var events []models.Event
	if err := e.db.Select(&events, `SELECT * FROM events ORDER BY university_name`); err != nil {
		t.Fatalf("Loading events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected one row per matched university, got %d", len(events))
	}
	if events[0].UniversityName != "Akademia Handlowa" || events[1].UniversityName != "Uniwersytet Testowy" {
		t.Errorf("Unexpected buckets: %s, %s", events[0].UniversityName, events[1].UniversityName)
	}
	for _, ev := range events {
		if ev.Category.String != "kultura" {
			t.Errorf("Expected display category kultura, got %q", ev.Category.String)
		}
		if ev.SourceUID.Valid {
			t.Error("Fanned-out rows must not carry a source UID")
		}
	}
	if events[0].ContentHash == events[1].ContentHash {
		t.Error("Bucket-qualified fingerprints must differ")
	}

	// Re-running the fan-out must not duplicate: the near-duplicate gate
	// sees the rows created by the first pass.
	e.upsertOne(ctx, item, "Szkoła Bez Słów", "https://example.com/page", "bilety")
	if got := countEvents(t, e); got != 2 {
		t.Fatalf("Fan-out re-run created duplicates: %d rows", got)
	}
}

func TestFanOutDropsUnmatchedItem(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	start := time.Date(2026, 6, 5, 19, 0, 0, 0, time.UTC)
	item := fetch.Item{
		Title:   "Kraków | Wieczór stand-upu",
		StartAt: &start,
	}
	e.upsertOne(ctx, item, "Szkoła Bez Słów", "https://example.com/page", "bilety")

	if got := countEvents(t, e); got != 0 {
		t.Fatalf("Unmatched cross-cutting item should be dropped, got %d rows", got)
	}
}

func TestNearDuplicateGateBlocksFanOut(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	start := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)
	original := fetch.Item{
		Origin:  fetch.OriginCalendar,
		Title:   "Koncert orkiestry studenckiej w auli głównej",
		StartAt: &start,
	}
	e.upsertOne(ctx, original, "Uniwersytet Testowy", "https://example.edu/cal.ics", "ogólne")
	if got := countEvents(t, e); got != 1 {
		t.Fatalf("Setup failed, got %d rows", got)
	}

	// Same concert from a ticketing feed, 30 minutes later, trailing noise
	// in the title. Must be recognized as a near-duplicate and skipped.
	nearStart := start.Add(30 * time.Minute)
	ticketed := fetch.Item{
		Origin:      fetch.OriginStructured,
		Title:       "Koncert orkiestry studenckiej w auli głównej (bilety)",
		Description: "Fizyka dźwięku na żywo.",
		StartAt:     &nearStart,
	}
	e.upsertOne(ctx, ticketed, "Szkoła Bez Słów", "https://tickets.example.com", "bilety")

	if got := countEvents(t, e); got != 1 {
		t.Fatalf("Near-duplicate should not fan out, got %d rows", got)
	}
	_, _, skipped := e.Stats()
	if skipped != 1 {
		t.Errorf("Expected 1 skipped item, got %d", skipped)
	}

	// Outside the window the gate does not apply.
	farStart := start.Add(3 * time.Hour)
	ticketed.StartAt = &farStart
	ticketed.Description = "Fizyka dźwięku na żywo."
	e.upsertOne(ctx, ticketed, "Szkoła Bez Słów", "https://tickets.example.com", "bilety")
	if got := countEvents(t, e); got != 2 {
		t.Fatalf("Distant event should fan out, got %d rows", got)
	}
}
