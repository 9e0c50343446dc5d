package handler

import "net/http"

// GET /health
// The worker is one-shot, so "exited" between requests is normal and still healthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Worker: h.worker.State().String(),
	})
}
