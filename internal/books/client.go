package books

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultVolumesURL is the Google Books volumes endpoint. Overridable on the
// Client for tests.
const DefaultVolumesURL = "https://www.googleapis.com/books/v1/volumes"

const pageSize = 40

// BookRecord is the external representation of a book: what API consumers
// see and what bucket snapshots store.
type BookRecord struct {
	ID              int64    `json:"id,omitempty"`
	GoogleID        string   `json:"google_id,omitempty"`
	Title           string   `json:"title"`
	Authors         string   `json:"authors,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	PublishedDate   string   `json:"published_date,omitempty"`
	Thumbnail       string   `json:"thumbnail,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Description     string   `json:"description,omitempty"`
	Language        string   `json:"language,omitempty"`
	PageCount       int      `json:"page_count,omitempty"`
	ISBN            string   `json:"isbn,omitempty"`
	AvailableCopies int      `json:"available_copies"`
	AvgRating       float64  `json:"avg_rating"`
	ReviewsCount    int      `json:"reviews_count"`
}

// Client talks to the Google Books volumes API.
type Client struct {
	// BaseURL of the volumes endpoint; defaults to DefaultVolumesURL.
	BaseURL string

	http   *http.Client
	apiKey string
}

// NewClient creates a Google Books client. The API key is optional; without
// one, requests run against the public quota.
func NewClient(timeout time.Duration, apiKey string) *Client {
	return &Client{
		BaseURL: DefaultVolumesURL,
		http:    &http.Client{Timeout: timeout},
		apiKey:  apiKey,
	}
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Publisher           string               `json:"publisher"`
	PublishedDate       string               `json:"publishedDate"`
	Description         string               `json:"description"`
	Categories          []string             `json:"categories"`
	Language            string               `json:"language"`
	PageCount           int                  `json:"pageCount"`
	ImageLinks          imageLinks           `json:"imageLinks"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
}

type imageLinks struct {
	Thumbnail string `json:"thumbnail"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// Search returns up to limit displayable volumes for the query. Volumes
// without a thumbnail or without authors are filtered out; the API is paged
// until the limit is met or results run out.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]BookRecord, error) {
	if limit <= 0 {
		limit = pageSize
	}

	var records []BookRecord
	for startIndex := 0; len(records) < limit; startIndex += pageSize {
		page, err := c.searchPage(ctx, query, startIndex)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}
		for _, vol := range page.Items {
			rec, ok := recordFromVolume(vol)
			if !ok {
				continue
			}
			records = append(records, rec)
			if len(records) == limit {
				break
			}
		}
		if startIndex+pageSize >= page.TotalItems {
			break
		}
	}

	return records, nil
}

func (c *Client) searchPage(ctx context.Context, query string, startIndex int) (*volumesResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(pageSize))
	params.Set("startIndex", strconv.Itoa(startIndex))
	params.Set("printType", "books")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building volumes request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying volumes for %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("querying volumes for %q: status %d", query, resp.StatusCode)
	}

	var page volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding volumes response: %w", err)
	}
	return &page, nil
}

// ByID looks up a single volume. Unlike Search, the displayability filter is
// not applied: a directly requested volume is returned as-is.
func (c *Client) ByID(ctx context.Context, googleID string) (*BookRecord, error) {
	u := c.BaseURL + "/" + url.PathEscape(googleID)
	if c.apiKey != "" {
		u += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building volume request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching volume %s: %w", googleID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching volume %s: status %d", googleID, resp.StatusCode)
	}

	var vol volume
	if err := json.NewDecoder(resp.Body).Decode(&vol); err != nil {
		return nil, fmt.Errorf("decoding volume response: %w", err)
	}

	rec := BookRecord{
		GoogleID:      vol.ID,
		Title:         vol.VolumeInfo.Title,
		Authors:       joinAuthors(vol.VolumeInfo.Authors),
		Publisher:     vol.VolumeInfo.Publisher,
		PublishedDate: vol.VolumeInfo.PublishedDate,
		Thumbnail:     vol.VolumeInfo.ImageLinks.Thumbnail,
		Categories:    vol.VolumeInfo.Categories,
		Description:   vol.VolumeInfo.Description,
		Language:      vol.VolumeInfo.Language,
		PageCount:     vol.VolumeInfo.PageCount,
		ISBN:          pickISBN(vol.VolumeInfo.IndustryIdentifiers),
	}
	return &rec, nil
}

// recordFromVolume maps an API volume to a record. Only volumes with both a
// thumbnail and at least one author are displayable.
func recordFromVolume(vol volume) (BookRecord, bool) {
	info := vol.VolumeInfo
	if info.ImageLinks.Thumbnail == "" || len(info.Authors) == 0 {
		return BookRecord{}, false
	}

	return BookRecord{
		GoogleID:      vol.ID,
		Title:         info.Title,
		Authors:       joinAuthors(info.Authors),
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
		Thumbnail:     info.ImageLinks.Thumbnail,
		Categories:    info.Categories,
		Description:   info.Description,
		Language:      info.Language,
		PageCount:     info.PageCount,
		ISBN:          pickISBN(info.IndustryIdentifiers),
	}, true
}

func joinAuthors(authors []string) string {
	out := ""
	for i, a := range authors {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}

// pickISBN prefers ISBN_13 over ISBN_10.
func pickISBN(ids []industryIdentifier) string {
	isbn10 := ""
	for _, id := range ids {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return isbn10
}
