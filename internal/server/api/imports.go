package api

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"academicbooks/aggregator/internal/config"
	"academicbooks/aggregator/internal/ingest"
)

// ImportResponse reports what a triggered import changed.
type ImportResponse struct {
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`
	Skipped  int64 `json:"skipped"`
}

// CleanupResponse reports how many duplicate rows a cleanup removed.
type CleanupResponse struct {
	Removed int64 `json:"removed"`
}

// ImportsHandler exposes the import pipeline over HTTP.
type ImportsHandler struct {
	engine *ingest.Engine
	cfg    *config.Sources
}

// NewImportsHandler creates a handler over the ingest engine.
func NewImportsHandler(engine *ingest.Engine, cfg *config.Sources) *ImportsHandler {
	return &ImportsHandler{engine: engine, cfg: cfg}
}

// TriggerImport runs an import synchronously: all universities, or just the
// one named by the 'university' parameter. The response carries the delta of
// the engine counters across this run.
func (h *ImportsHandler) TriggerImport(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	insBefore, updBefore, skipBefore := h.engine.Stats()

	if name := r.URL.Query().Get("university"); name != "" {
		if h.cfg.UniversityByName(name) == nil {
			http.Error(w, "Unknown university", http.StatusNotFound)
			return
		}
		if err := h.engine.ImportUniversity(r.Context(), name); err != nil {
			log.Error().Err(err).Str("university", name).Msg("Triggered import failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	} else {
		if err := h.engine.ImportAll(r.Context()); err != nil {
			log.Error().Err(err).Msg("Triggered import failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	insAfter, updAfter, skipAfter := h.engine.Stats()
	writeJSON(w, log, ImportResponse{
		Inserted: insAfter - insBefore,
		Updated:  updAfter - updBefore,
		Skipped:  skipAfter - skipBefore,
	})
}

// TriggerCleanup runs the duplicate sweep and reports the removed row count.
func (h *ImportsHandler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	removed, err := h.engine.CleanupDuplicates(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Triggered cleanup failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, log, CleanupResponse{Removed: removed})
}
