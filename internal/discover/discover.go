package discover

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// badTLSHosts is the fixed allow-list of hosts with broken certificate
// chains for which the insecure fallback is permitted.
var badTLSHosts = map[string]struct{}{
	"krakow.ast.krakow.pl": {},
	"www.ast.krakow.pl":    {},
}

var calendarMIMETypes = map[string]struct{}{
	"text/calendar":             {},
	"application/calendar+json": {},
}

var feedMIMETypes = map[string]struct{}{
	"application/rss+xml":  {},
	"application/atom+xml": {},
}

// detailPathHints mark anchors worth recursing into once.
var detailPathHints = []string{
	"/wydarzenia", "/events", "/konferenc", "tx_sfeventmgt",
	"/repertuar", "/kalendarium", "/artykul/",
}

const maxDetailPages = 50

// Result is everything a single page probe can surface.
type Result struct {
	CalendarURLs     []string
	FeedURLs         []string
	StructuredEvents []map[string]any
	DetailPages      []string
}

// Discoverer probes web pages for machine-readable content sources. It
// performs exactly one page fetch per Discover call; recursing into detail
// pages is the caller's responsibility.
type Discoverer struct {
	client   *http.Client
	insecure *http.Client
}

// New creates a Discoverer whose fetches are bounded by timeout.
func New(timeout time.Duration) *Discoverer {
	return &Discoverer{
		client: &http.Client{Timeout: timeout},
		insecure: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// Discover fetches pageURL and extracts candidate feed endpoints. Any fetch
// or parse failure yields an all-empty Result; "nothing found" is a valid
// outcome, not an error to the caller.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) Result {
	body := d.safeGet(ctx, pageURL)
	if body == nil {
		return Result{}
	}
	defer body.Body.Close()

	doc, err := goquery.NewDocumentFromReader(body.Body)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Discovery HTML parse failed")
		return Result{}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Result{}
	}

	calendars := map[string]struct{}{}
	feeds := map[string]struct{}{}
	details := map[string]struct{}{}
	var structured []map[string]any

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		full := resolveURL(base, href)
		if full == "" {
			return
		}
		mime := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if _, ok := feedMIMETypes[mime]; ok {
			feeds[full] = struct{}{}
		}
		if _, ok := calendarMIMETypes[mime]; ok || hasICalHint(full) {
			calendars[full] = struct{}{}
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		full := resolveURL(base, href)
		if full == "" {
			return
		}
		text := strings.ToLower(s.Text())
		if strings.Contains(text, "ical") || strings.Contains(text, "ics") || hasICalHint(full) {
			calendars[full] = struct{}{}
		}
		lower := strings.ToLower(full)
		for _, hint := range detailPathHints {
			if strings.Contains(lower, hint) {
				details[full] = struct{}{}
				break
			}
		}
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		structured = append(structured, parseLDEvents(s.Text())...)
	})

	return Result{
		CalendarURLs:     sortedKeys(calendars),
		FeedURLs:         sortedKeys(feeds),
		StructuredEvents: structured,
		DetailPages:      capSlice(sortedKeys(details), maxDetailPages),
	}
}

// safeGet fetches a page with the fallback chain: plain HTTPS, then HTTPS
// without certificate validation (allow-listed hosts only), then plain HTTP.
func (d *Discoverer) safeGet(ctx context.Context, pageURL string) *http.Response {
	resp := d.tryGet(ctx, d.client, pageURL)
	if resp != nil {
		return resp
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(parsed.Hostname())
	if _, ok := badTLSHosts[host]; !ok {
		return nil
	}

	if resp := d.tryGet(ctx, d.insecure, pageURL); resp != nil {
		return resp
	}
	if strings.HasPrefix(pageURL, "https://") {
		plain := "http://" + strings.TrimPrefix(pageURL, "https://")
		if resp := d.tryGet(ctx, d.client, plain); resp != nil {
			return resp
		}
	}
	return nil
}

func (d *Discoverer) tryGet(ctx context.Context, client *http.Client, pageURL string) *http.Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*")

	resp, err := client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Discovery fetch failed")
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil
	}
	return resp
}

// parseLDEvents collects every object with @type "Event" from a JSON-LD
// block, whether top-level, inside a list, or nested under @graph.
func parseLDEvents(raw string) []map[string]any {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	blobs, ok := data.([]any)
	if !ok {
		blobs = []any{data}
	}

	var events []map[string]any
	for _, blob := range blobs {
		obj, ok := blob.(map[string]any)
		if !ok {
			continue
		}
		if graph, ok := obj["@graph"].([]any); ok {
			for _, g := range graph {
				if ev, ok := g.(map[string]any); ok && ev["@type"] == "Event" {
					events = append(events, ev)
				}
			}
		}
		if obj["@type"] == "Event" {
			events = append(events, obj)
		}
	}
	return events
}

func hasICalHint(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasSuffix(lower, ".ics") ||
		strings.Contains(lower, "ical")
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func capSlice(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
