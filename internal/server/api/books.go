package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"academicbooks/aggregator/internal/books"
	"academicbooks/aggregator/internal/config"
)

// BooksResponse is the envelope for both book listing endpoints.
type BooksResponse struct {
	Books []books.BookRecord `json:"books"`
}

// BooksHandler serves merged per-university book listings.
type BooksHandler struct {
	svc *books.Service
	cfg *config.Sources
}

// NewBooksHandler creates a handler over the book service.
func NewBooksHandler(svc *books.Service, cfg *config.Sources) *BooksHandler {
	return &BooksHandler{svc: svc, cfg: cfg}
}

// GetBooks returns the merged listing for one university.
func (h *BooksHandler) GetBooks(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	name := r.URL.Query().Get("university")
	if name == "" {
		http.Error(w, "Missing required parameter: 'university'", http.StatusBadRequest)
		return
	}
	if h.cfg.UniversityByName(name) == nil {
		http.Error(w, "Unknown university", http.StatusNotFound)
		return
	}

	records, err := h.svc.BooksForUniversity(r.Context(), name)
	if err != nil {
		log.Error().Err(err).Str("university", name).Msg("Error building book listing")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, log, BooksResponse{Books: records})
}

// GetBook returns one book by its catalog identifier, fetching and
// persisting it on first sight.
func (h *BooksHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	googleID := r.PathValue("google_id")
	if googleID == "" {
		http.Error(w, "Missing book identifier", http.StatusBadRequest)
		return
	}

	record, err := h.svc.BookByGoogleID(r.Context(), googleID)
	if err != nil {
		log.Warn().Err(err).Str("google_id", googleID).Msg("Book lookup failed")
		http.Error(w, "Book not found", http.StatusNotFound)
		return
	}

	writeJSON(w, log, record)
}

// GetBooksMulti returns one merged, deduplicated listing across several
// universities, named by repeated 'university' parameters. With none given,
// every configured university is included.
func (h *BooksHandler) GetBooksMulti(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	names := h.cfg.UniversityNames()
	if requested := r.URL.Query()["university"]; len(requested) > 0 {
		names = nil
		for _, name := range requested {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if h.cfg.UniversityByName(name) == nil {
				http.Error(w, "Unknown university: "+name, http.StatusNotFound)
				return
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		http.Error(w, "No universities requested", http.StatusBadRequest)
		return
	}

	records, err := h.svc.BooksMulti(r.Context(), names)
	if err != nil {
		log.Error().Err(err).Msg("Error building multi-university book listing")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, log, BooksResponse{Books: records})
}
