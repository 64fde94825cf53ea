package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Wydarzenia</title>
<link>https://example.edu</link>
<item>
<title>Dni Otwarte Wydziału</title>
<link>https://example.edu/dni-otwarte</link>
<description>Zapraszamy na dni otwarte.</description>
<pubDate>Mon, 02 Mar 2026 09:00:00 GMT</pubDate>
</item>
<item>
<link>https://example.edu/bez-tytulu</link>
</item>
</channel>
</rss>`

func TestFetchFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	items, err := FetchFeed(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("FetchFeed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Dni Otwarte Wydziału" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Origin != OriginSyndication {
		t.Errorf("Origin = %q", first.Origin)
	}
	wantStart := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if first.StartAt == nil || !first.StartAt.Equal(wantStart) {
		t.Errorf("StartAt = %v, want %v", first.StartAt, wantStart)
	}

	if items[1].Title != Untitled {
		t.Errorf("Missing title should fall back to %q, got %q", Untitled, items[1].Title)
	}
}
