package books

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fakeVolumes(items ...map[string]any) map[string]any {
	return map[string]any{"totalItems": len(items), "items": items}
}

func fakeVolume(id, title string, authors []string, thumbnail string, ids ...map[string]string) map[string]any {
	info := map[string]any{
		"title":   title,
		"authors": authors,
	}
	if thumbnail != "" {
		info["imageLinks"] = map[string]any{"thumbnail": thumbnail}
	}
	if len(ids) > 0 {
		info["industryIdentifiers"] = ids
	}
	return map[string]any{"id": id, "volumeInfo": info}
}

func newTestClient(t *testing.T, payload any) (*Client, *int) {
	t.Helper()

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(5*time.Second, "")
	c.BaseURL = srv.URL
	return c, &requests
}

func TestSearchFiltersUndisplayableVolumes(t *testing.T) {
	payload := fakeVolumes(
		fakeVolume("vol-1", "Fizyka kwantowa", []string{"A. Nowak"}, "https://img/1"),
		fakeVolume("vol-2", "Bez okładki", []string{"B. Kowalski"}, ""),
		fakeVolume("vol-3", "Bez autora", nil, "https://img/3"),
	)
	c, _ := newTestClient(t, payload)

	records, err := c.Search(context.Background(), "physics", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 displayable volume, got %d", len(records))
	}
	if records[0].GoogleID != "vol-1" {
		t.Errorf("GoogleID = %q", records[0].GoogleID)
	}
	if records[0].Authors != "A. Nowak" {
		t.Errorf("Authors = %q", records[0].Authors)
	}
}

func TestSearchPrefersISBN13(t *testing.T) {
	payload := fakeVolumes(
		fakeVolume("vol-1", "Ekonomia", []string{"C. Wiśniewska"}, "https://img/1",
			map[string]string{"type": "ISBN_10", "identifier": "8301234567"},
			map[string]string{"type": "ISBN_13", "identifier": "9788301234567"},
		),
		fakeVolume("vol-2", "Finanse", []string{"D. Lewandowski"}, "https://img/2",
			map[string]string{"type": "ISBN_10", "identifier": "8307654321"},
		),
	)
	c, _ := newTestClient(t, payload)

	records, err := c.Search(context.Background(), "economics", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if records[0].ISBN != "9788301234567" {
		t.Errorf("ISBN = %q, want the ISBN_13", records[0].ISBN)
	}
	if records[1].ISBN != "8307654321" {
		t.Errorf("ISBN = %q, want the ISBN_10 fallback", records[1].ISBN)
	}
}

func TestSearchStopsAtLimit(t *testing.T) {
	items := make([]map[string]any, 0, pageSize)
	for i := 0; i < pageSize; i++ {
		items = append(items, fakeVolume(
			"vol-"+string(rune('a'+i%26))+string(rune('0'+i/26)),
			"Tom", []string{"Autor"}, "https://img/x"))
	}
	c, requests := newTestClient(t, fakeVolumes(items...))

	records, err := c.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(records))
	}
	if *requests != 1 {
		t.Errorf("Expected 1 request, got %d", *requests)
	}
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, "")
	c.BaseURL = srv.URL
	if _, err := c.Search(context.Background(), "x", 5); err == nil {
		t.Fatal("Expected error for non-200 response")
	}
}
