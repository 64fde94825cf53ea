package fetch

import (
	"net/http"
	"strings"
	"time"
)

// Origin identifies which fetcher produced an Item.
type Origin string

const (
	OriginCalendar    Origin = "ics"
	OriginSyndication Origin = "rss"
	OriginStructured  Origin = "jsonld"
)

// Untitled is the title fallback for items whose source carries none.
const Untitled = "(bez tytułu)"

// Item is the normalized shape every fetcher produces. It is validated at
// the fetcher boundary so downstream code never branches on field presence
// beyond the nil-able timestamps.
type Item struct {
	Title        string
	Description  string
	StartAt      *time.Time
	EndAt        *time.Time
	AllDay       bool
	LocationName string
	Address      string
	IsOnline     bool
	MeetingURL   string
	Organizer    string
	UID          string
	Origin       Origin
}

// onlineKeywords flag an event as online when any of them appears in the
// location or meeting URL.
var onlineKeywords = []string{"online", "teams", "zoom", "meet", "webinar", "stream"}

// IsOnlineText reports whether the joined inputs mention an online meeting.
func IsOnlineText(parts ...string) bool {
	blob := strings.ToLower(strings.Join(parts, " "))
	for _, k := range onlineKeywords {
		if strings.Contains(blob, k) {
			return true
		}
	}
	return false
}

// NewHTTPClient returns the HTTP client used for all feed and calendar
// downloads. The timeout bounds every fetch so one slow source cannot stall
// an entire import.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func normText(s string) string {
	return strings.TrimSpace(s)
}
