package handlers

import (
	"net/http"

	"github.com/eldtechnologies/aidesk/internal/models"
)

// StatsResponse carries the aggregate counts. Fetched is false when the
// request fell inside the throttle window and the counts are the cached ones.
type StatsResponse struct {
	models.Stats
	Fetched bool `json:"fetched"`
}

// Stats refreshes and returns the aggregate chat counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	fetched := h.core.FetchStats(r.Context())
	h.JSON(w, http.StatusOK, StatsResponse{Stats: h.core.Snapshot().Stats, Fetched: fetched})
}

// GetAIContext returns the AI system prompt and FAQ set.
func (h *Handler) GetAIContext(w http.ResponseWriter, r *http.Request) {
	aiCtx, ok := h.core.AIContext(r.Context())
	if !ok {
		h.Error(w, http.StatusBadGateway, "failed to load AI context")
		return
	}
	h.JSON(w, http.StatusOK, aiCtx)
}

// PutAIContext replaces the AI system prompt and FAQ set.
func (h *Handler) PutAIContext(w http.ResponseWriter, r *http.Request) {
	var req models.AIContext
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.core.UpdateAIContext(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.JSON(w, http.StatusOK, out)
}
