package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const timedICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example//Calendar//PL
BEGIN:VEVENT
UID:seminar-42@example.edu
DTSTAMP:20260301T120000Z
DTSTART:20260410T140000Z
DTEND:20260410T160000Z
SUMMARY:Seminarium instytutowe
DESCRIPTION:Prezentacja wyników.
LOCATION:Sala 204
URL:https://example.edu/seminaria/42
END:VEVENT
BEGIN:VEVENT
UID:broken@example.edu
DTSTAMP:20260301T120000Z
SUMMARY:Wydarzenie bez daty
END:VEVENT
END:VCALENDAR
`

func serveICS(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCalendar(t *testing.T) {
	srv := serveICS(t, timedICS)

	items, err := FetchCalendar(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("FetchCalendar: %v", err)
	}
	// The VEVENT without DTSTART is skipped, not fatal.
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.Title != "Seminarium instytutowe" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.UID != "seminar-42@example.edu" {
		t.Errorf("UID = %q", item.UID)
	}
	if item.AllDay {
		t.Error("Timed event marked all-day")
	}
	wantStart := time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)
	if item.StartAt == nil || !item.StartAt.Equal(wantStart) {
		t.Errorf("StartAt = %v, want %v", item.StartAt, wantStart)
	}
	if item.EndAt == nil || !item.EndAt.Equal(wantStart.Add(2*time.Hour)) {
		t.Errorf("EndAt = %v", item.EndAt)
	}
	if item.LocationName != "Sala 204" {
		t.Errorf("LocationName = %q", item.LocationName)
	}
	if item.Origin != OriginCalendar {
		t.Errorf("Origin = %q", item.Origin)
	}
}

func TestFetchCalendarHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FetchCalendar(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("Expected error for non-200 response")
	}
}
