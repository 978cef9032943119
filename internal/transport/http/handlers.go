package httptransport

import (
	"encoding/json"
	"net/http"

	"reachcheck/internal/pipeline"
	"reachcheck/internal/report"
)

// maxBatchSize caps one batch request; larger lists should be split by the
// caller.
const maxBatchSize = 100

type validateRequest struct {
	Number       string `json:"number"`
	ForceRefresh bool   `json:"force_refresh"`
}

type batchRequest struct {
	Numbers      []string `json:"numbers"`
	ForceRefresh bool     `json:"force_refresh"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "number is required")
		return
	}

	res := h.svc.Validate(r.Context(), pipeline.Request{
		Number:       req.Number,
		ForceRefresh: req.ForceRefresh,
	})
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if len(req.Numbers) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "numbers is required")
		return
	}
	if len(req.Numbers) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "bad_request", "too many numbers in one batch")
		return
	}

	results := h.svc.ValidateBatch(r.Context(), req.Numbers, req.ForceRefresh)

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   len(results),
			"results": results,
		})
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		if err := report.WriteCSV(w, results); err != nil {
			h.logger.ErrorContext(r.Context(), "csv export failed", "error", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "unsupported format")
	}
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.svc.CacheStats(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "cache is disabled")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearCache(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "cache clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLimiterStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := h.svc.LimiterStatus()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "rate limiting is disabled")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.svc.AnalyticsSnapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "analytics is disabled")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
