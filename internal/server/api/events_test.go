package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"academicbooks/aggregator/internal/database"
	"academicbooks/aggregator/internal/models"
	"academicbooks/aggregator/internal/server/storage"
)

func setupEventsMux(t *testing.T) (*http.ServeMux, *database.DB) {
	t.Helper()

	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	handler := NewEventsHandler(storage.NewRepository(db))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/events", handler.GetEvents)
	mux.HandleFunc("GET /v1/events/{id}/ics", handler.GetEventICS)
	return mux, db
}

func insertEvent(t *testing.T, db *database.DB, title, university, category string, start time.Time) int64 {
	t.Helper()

	res, err := db.Exec(`
		INSERT INTO events (
			title, start_at, university_name, category, source_type,
			content_hash, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title, start.UTC(), university, category, models.SourceTypeCalendar,
		fmt.Sprintf("hash-%s-%s", title, start.Format(time.RFC3339)),
		models.EventPublished, start.UTC(), start.UTC())
	if err != nil {
		t.Fatalf("Inserting event: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func getEvents(t *testing.T, mux *http.ServeMux, query string) EventsResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/v1/events"+query, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/events%s: status %d: %s", query, rec.Code, rec.Body.String())
	}

	var resp EventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding response: %v", err)
	}
	return resp
}

func TestGetEventsOrderingAndFilters(t *testing.T) {
	mux, db := setupEventsMux(t)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	insertEvent(t, db, "Późniejsze", "Uniwersytet Testowy", "ogólne", base.Add(48*time.Hour))
	insertEvent(t, db, "Wcześniejsze", "Uniwersytet Testowy", "ogólne", base)
	insertEvent(t, db, "Inna uczelnia", "Akademia Handlowa", "kultura", base.Add(time.Hour))

	resp := getEvents(t, mux, "")
	if len(resp.Events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(resp.Events))
	}
	if resp.Events[0].Title != "Wcześniejsze" {
		t.Errorf("Events should be ordered by start time, first is %q", resp.Events[0].Title)
	}

	byUni := getEvents(t, mux, "?university=Akademia+Handlowa")
	if len(byUni.Events) != 1 || byUni.Events[0].Title != "Inna uczelnia" {
		t.Errorf("University filter returned %+v", byUni.Events)
	}

	byCat := getEvents(t, mux, "?category=kultura")
	if len(byCat.Events) != 1 {
		t.Errorf("Category filter returned %d events", len(byCat.Events))
	}

	windowed := getEvents(t, mux,
		"?from="+base.Add(-time.Hour).Format(time.RFC3339)+
			"&to="+base.Add(2*time.Hour).Format(time.RFC3339))
	if len(windowed.Events) != 2 {
		t.Errorf("Time window returned %d events", len(windowed.Events))
	}
}

func TestGetEventsOnlineAndTextFilters(t *testing.T) {
	mux, db := setupEventsMux(t)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	insertEvent(t, db, "Seminarium stacjonarne", "Uniwersytet Testowy", "ogólne", base)
	if _, err := db.Exec(`
		INSERT INTO events (
			title, description, start_at, is_online, university_name,
			source_type, content_hash, status, created_at, updated_at
		) VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?, ?)`,
		"Webinarium rekrutacyjne", "Spotkanie na platformie Zoom.", base.Add(time.Hour),
		"Uniwersytet Testowy", models.SourceTypeStructured, "hash-webinar",
		models.EventPublished, base, base); err != nil {
		t.Fatalf("Inserting online event: %v", err)
	}

	online := getEvents(t, mux, "?online=true")
	if len(online.Events) != 1 || !online.Events[0].IsOnline {
		t.Errorf("Online filter returned %+v", online.Events)
	}

	offline := getEvents(t, mux, "?online=false")
	if len(offline.Events) != 1 || offline.Events[0].IsOnline {
		t.Errorf("Offline filter returned %+v", offline.Events)
	}

	// Text search matches title or description.
	byTitle := getEvents(t, mux, "?q=rekrutacyjne")
	if len(byTitle.Events) != 1 || byTitle.Events[0].Title != "Webinarium rekrutacyjne" {
		t.Errorf("Title search returned %+v", byTitle.Events)
	}
	byDesc := getEvents(t, mux, "?q=Zoom")
	if len(byDesc.Events) != 1 {
		t.Errorf("Description search returned %d events", len(byDesc.Events))
	}
}

func TestGetEventsPagination(t *testing.T) {
	mux, db := setupEventsMux(t)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertEvent(t, db, fmt.Sprintf("Wydarzenie %d", i), "Uniwersytet Testowy", "ogólne",
			base.Add(time.Duration(i)*time.Hour))
	}

	page1 := getEvents(t, mux, "?limit=2")
	if len(page1.Events) != 2 || page1.NextCursor == nil {
		t.Fatalf("First page: %d events, cursor %v", len(page1.Events), page1.NextCursor)
	}

	page2 := getEvents(t, mux, "?limit=2&cursor="+*page1.NextCursor)
	if len(page2.Events) != 2 || page2.NextCursor == nil {
		t.Fatalf("Second page: %d events, cursor %v", len(page2.Events), page2.NextCursor)
	}
	if page2.Events[0].Title != "Wydarzenie 2" {
		t.Errorf("Second page starts at %q", page2.Events[0].Title)
	}

	page3 := getEvents(t, mux, "?limit=2&cursor="+*page2.NextCursor)
	if len(page3.Events) != 1 || page3.NextCursor != nil {
		t.Fatalf("Last page: %d events, cursor %v", len(page3.Events), page3.NextCursor)
	}

	// No overlap or loss across pages.
	seen := map[string]bool{}
	for _, page := range []EventsResponse{page1, page2, page3} {
		for _, ev := range page.Events {
			if seen[ev.Title] {
				t.Errorf("Event %q appeared twice", ev.Title)
			}
			seen[ev.Title] = true
		}
	}
	if len(seen) != 5 {
		t.Errorf("Pagination lost events: saw %d of 5", len(seen))
	}
}

func TestGetEventsBadParameters(t *testing.T) {
	mux, _ := setupEventsMux(t)

	for _, query := range []string{"?limit=0", "?limit=9999", "?cursor=zzz", "?from=yesterday"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/events"+query, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET /v1/events%s: status %d, want 400", query, rec.Code)
		}
	}
}

func TestGetEventICS(t *testing.T) {
	mux, db := setupEventsMux(t)

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	id := insertEvent(t, db, "Wykład inauguracyjny", "Uniwersytet Testowy", "konferencje", start)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/events/%d/ics", id), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "SUMMARY:Wykład inauguracyjny", "DTSTART:20260501T100000Z"} {
		if !strings.Contains(body, want) {
			t.Errorf("ICS body missing %q:\n%s", want, body)
		}
	}
}

func TestGetEventICSNotFound(t *testing.T) {
	mux, _ := setupEventsMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/events/999/ics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status %d, want 404", rec.Code)
	}
}
