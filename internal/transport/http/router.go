package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reachcheck/internal/pipeline"
)

// Handler is the thin HTTP layer over the validation pipeline. It delegates
// to the pipeline without embedding business logic so transport concerns
// remain isolated.
type Handler struct {
	svc    *pipeline.Service
	logger *slog.Logger
}

func NewHandler(svc *pipeline.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, logger: logger}
}

// NewRouter wires all endpoints. The validation surface sits behind bearer
// auth when a signing key is configured; health and metrics stay open.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, jwtSigningKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if jwtSigningKey != "" {
			r.Use(requireAuth([]byte(jwtSigningKey), h.logger))
		}
		r.Post("/validate", h.handleValidate)
		r.Post("/validate/batch", h.handleValidateBatch)
		r.Get("/cache/stats", h.handleCacheStats)
		r.Delete("/cache", h.handleCacheClear)
		r.Get("/limiter/status", h.handleLimiterStatus)
		r.Get("/analytics", h.handleAnalytics)
	})

	return r
}

// requestLogger logs one line per request after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError keeps the JSON error envelope consistent across handlers.
func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
