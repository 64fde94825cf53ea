package fetch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"
)

// FetchFeed downloads an RSS/Atom feed and maps every entry to an Item.
// The entry's published (or updated) timestamp becomes StartAt when present.
// Callers treat any error as an empty result.
func FetchFeed(ctx context.Context, client *http.Client, url string) ([]Item, error) {
	parser := gofeed.NewParser()
	parser.Client = client

	feed, err := parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", url, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := Item{
			Origin:      OriginSyndication,
			Title:       normText(entry.Title),
			Description: normText(entry.Description),
			MeetingURL:  normText(entry.Link),
		}
		if item.Title == "" {
			item.Title = Untitled
		}
		if entry.PublishedParsed != nil {
			utc := entry.PublishedParsed.UTC()
			item.StartAt = &utc
		} else if entry.UpdatedParsed != nil {
			utc := entry.UpdatedParsed.UTC()
			item.StartAt = &utc
		}
		item.IsOnline = IsOnlineText(item.LocationName, item.MeetingURL)
		items = append(items, item)
	}

	return items, nil
}
