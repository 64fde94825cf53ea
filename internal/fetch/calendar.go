package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog/log"
)

const dateOnlyLayout = "20060102"

// FetchCalendar downloads an ICS document and normalizes every VEVENT.
// Callers treat any error as an empty result; a failing calendar source
// contributes zero items to an import.
func FetchCalendar(ctx context.Context, client *http.Client, url string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building calendar request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "text/calendar, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching calendar %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading calendar %s: %w", url, err)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing calendar %s: %w", url, err)
	}

	items := make([]Item, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		item, err := itemFromVEvent(ve)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Skipping unparseable VEVENT")
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func itemFromVEvent(ve *ical.VEvent) (Item, error) {
	item := Item{Origin: OriginCalendar}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		item.Title = normText(p.Value)
	}
	if item.Title == "" {
		item.Title = Untitled
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		item.Description = normText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		item.LocationName = normText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		item.MeetingURL = normText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		item.Organizer = normText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		item.UID = normText(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return item, fmt.Errorf("VEVENT without DTSTART")
	}

	if isDateOnly(dtStart) {
		// Date-only entries become all-day events spanning the full day.
		item.AllDay = true
		startDay, err := time.ParseInLocation(dateOnlyLayout, dtStart.Value, time.UTC)
		if err != nil {
			return item, fmt.Errorf("parsing all-day DTSTART %q: %w", dtStart.Value, err)
		}
		endDay := startDay
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if d, err := time.ParseInLocation(dateOnlyLayout, dtEnd.Value, time.UTC); err == nil {
				endDay = d
			}
		}
		start := startDay
		end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, 0, time.UTC)
		item.StartAt = &start
		item.EndAt = &end
	} else {
		if start, err := ve.GetStartAt(); err == nil && !start.IsZero() {
			utc := start.UTC()
			item.StartAt = &utc
		}
		if end, err := ve.GetEndAt(); err == nil && !end.IsZero() {
			utc := end.UTC()
			item.EndAt = &utc
		}
	}

	item.IsOnline = IsOnlineText(item.LocationName, item.MeetingURL)
	return item, nil
}

// isDateOnly reports whether DTSTART carries VALUE=DATE or a date-only value.
func isDateOnly(p *ical.IANAProperty) bool {
	if p.ICalParameters != nil {
		if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}
