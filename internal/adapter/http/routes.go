package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the health check and all API routes on the given
// chi router. Extra middleware (idempotency, for instance) applies to the
// asynchronous request endpoint only.
func MountRoutes(r chi.Router, h *Handlers, asyncMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})
		r.Get("/health", h.Health)

		// Analysis
		r.Get("/repos/{owner}/{repo}/analysis", h.GetAnalysis)
		r.Delete("/repos/{owner}/{repo}/analysis", h.InvalidateAnalysis)
		r.Post("/analyze", h.Analyze)
		r.With(asyncMiddleware...).Post("/analyze/async", h.AnalyzeAsync)

		// Scoring
		r.Post("/score", h.Score)
		r.Get("/platforms", h.ListPlatforms)

		// History
		r.Get("/repos/{owner}/{repo}/history", h.ListHistory)
		r.Get("/analyses/{id}", h.GetRecord)
	})
}
