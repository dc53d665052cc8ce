package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hostdex/internal/metrics"
)

// NewRouter binds the gateway endpoints plus /health and /metrics.
// Every route answers with and without a trailing slash.
func NewRouter(s *Server, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Use(chiMiddleware.StripSlashes)

	r.Get("/search", s.Search)
	r.Get("/mapping", s.Mapping)
	r.Get("/get-document", s.GetDocument)

	// Write endpoints authenticate inside the handler, after validation.
	r.Post("/create-index", s.CreateIndex)
	r.Post("/add-data", s.AddData)

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
