package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Catalog and estimates: language-aware, identity from upstream headers.
		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware)
			r.Use(LanguageMiddleware(h.localizer))
			r.Get("/trades", h.ListTrades)
			r.Get("/trades/{tradeID}", h.GetTrade)
			r.Get("/trades/{tradeID}/job-types/{jobTypeID}", h.GetJobType)
			r.Post("/estimates", h.CreateEstimate)
			r.Get("/search", h.Search)
		})

		// Admin routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Get("/templates", h.ListTemplates)
			r.Post("/templates/reconcile", h.ReconcileTemplates)
			r.Post("/templates/export", h.ExportTemplates)
		})
	})

	return r
}
