package fetch

import (
	"strings"

	"github.com/araddon/dateparse"
)

// StructuredItem converts one raw JSON-LD Event object (as collected by
// discovery) into a normalized Item. Dates are free text; a value that the
// best-effort parser cannot handle leaves the timestamp absent rather than
// failing the item.
func StructuredItem(obj map[string]any) Item {
	item := Item{Origin: OriginStructured}

	item.Title = normText(stringField(obj, "name"))
	if item.Title == "" {
		item.Title = Untitled
	}
	item.Description = normText(stringField(obj, "description"))
	item.MeetingURL = normText(stringField(obj, "url"))

	if start := stringField(obj, "startDate"); start != "" {
		if t, err := dateparse.ParseAny(start); err == nil {
			utc := t.UTC()
			item.StartAt = &utc
		}
	}
	if end := stringField(obj, "endDate"); end != "" {
		if t, err := dateparse.ParseAny(end); err == nil {
			utc := t.UTC()
			item.EndAt = &utc
		}
	}

	item.LocationName = locationName(obj["location"])
	item.IsOnline = IsOnlineText(item.LocationName, item.MeetingURL)

	return item
}

// locationName handles the two shapes JSON-LD uses: a plain name string or
// a nested Place object with an optional postal address.
func locationName(loc any) string {
	switch v := loc.(type) {
	case string:
		return normText(v)
	case map[string]any:
		name := normText(stringField(v, "name"))
		if name != "" {
			return name
		}
		if addr, ok := v["address"].(map[string]any); ok {
			street := stringField(addr, "streetAddress")
			city := stringField(addr, "addressLocality")
			return normText(strings.TrimSpace(street + " " + city))
		}
	}
	return ""
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}
