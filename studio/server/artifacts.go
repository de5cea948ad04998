package server

import (
	"net/http"
	"strconv"

	"github.com/ZanzyTHEbar/video-studio/studio/gallery"
	"github.com/ZanzyTHEbar/video-studio/studio/pipeline/adapters"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	maxQueryLength     = 100
)

// ArtifactsResponse is the body of GET /artifacts.
type ArtifactsResponse struct {
	Query   string          `json:"query"`
	Results []gallery.Entry `json:"results"`
	Total   int             `json:"total"`
}

// Artifacts searches the video gallery.
func (h *Handler) Artifacts(w http.ResponseWriter, r *http.Request) {
	if h.gallery == nil {
		h.Error(w, http.StatusNotImplemented, "gallery disabled")
		return
	}

	query := r.URL.Query().Get("q")
	if len(query) > maxQueryLength {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}

	limit := defaultSearchLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, maxSearchLimit)
		}
	}

	results := h.gallery.Search(query, r.URL.Query().Get("style"), limit)
	if results == nil {
		results = []gallery.Entry{}
	}
	h.JSON(w, http.StatusOK, ArtifactsResponse{Query: query, Results: results, Total: len(results)})
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Stages map[string]adapters.StageSummary `json:"stages"`
	Turns  map[ports.IntentKind]int         `json:"turns"`
	Videos int                              `json:"videos"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Stages: map[string]adapters.StageSummary{},
		Turns:  map[ports.IntentKind]int{},
	}
	if h.stats != nil {
		resp.Stages = h.stats.Summary()
		resp.Turns = h.stats.Turns()
	}
	if h.gallery != nil {
		resp.Videos = h.gallery.Len()
	}
	h.JSON(w, http.StatusOK, resp)
}
