package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/maltedev/marketplace-harvester/internal/scraper"
)

// RunSource lists recent run attempts, newest first.
type RunSource interface {
	List() []scraper.Outcome
}

type Handlers struct {
	runs    RunSource
	started time.Time
	logger  *slog.Logger
}

func NewHandlers(runs RunSource, logger *slog.Logger) *Handlers {
	return &Handlers{
		runs:    runs,
		started: time.Now(),
		logger:  logger,
	}
}

// Health reports liveness plus a count of recent failed attempts.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	runs := h.runs.List()

	failed := 0
	for _, o := range runs {
		if o.Class != scraper.ClassNone {
			failed++
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"runs": map[string]int{
			"recent": len(runs),
			"failed": failed,
		},
	})
}

// ListRuns returns recent run attempts. ?limit=N trims the list and
// ?class=captcha keeps only attempts that ended with that class.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.runs.List()

	if class := r.URL.Query().Get("class"); class != "" {
		filtered := make([]scraper.Outcome, 0, len(runs))
		for _, o := range runs {
			if string(o.Class) == class {
				filtered = append(filtered, o)
			}
		}
		runs = filtered
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(runs) {
			runs = runs[:limit]
		}
	}

	h.respondJSON(w, http.StatusOK, runs)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
