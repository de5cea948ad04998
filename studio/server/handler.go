package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/video-studio/studio/gallery"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline/adapters"
)

const maxBodyBytes = 16 * 1024

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	orch        *pipeline.Orchestrator
	gallery     *gallery.Gallery
	stats       *adapters.LatencyStats
	logger      zerolog.Logger
	eventBuffer int
}

// NewHandler creates a Handler. gallery and stats may be nil.
func NewHandler(orch *pipeline.Orchestrator, g *gallery.Gallery, stats *adapters.LatencyStats, logger zerolog.Logger, eventBuffer int) *Handler {
	return &Handler{orch: orch, gallery: g, stats: stats, logger: logger, eventBuffer: eventBuffer}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// decode reads a bounded JSON body into v.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
