package routes

import (
	"github.com/BradenHooton/prospector/internal/auth"
	"github.com/BradenHooton/prospector/internal/handlers"
	"github.com/BradenHooton/prospector/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Deps are the handlers and guards mounted under /api/v1
type Deps struct {
	SearchHandler   *handlers.SearchHandler
	OutreachHandler *handlers.OutreachHandler
	TokenManager    *auth.TokenManager
	IPLimit         middleware.IPRateLimitConfig
	APILimiter      middleware.Checker
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Deps) {
	router.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated callers are throttled by IP before token checks
		r.Use(middleware.RateLimitByIP(deps.IPLimit))
		r.Use(auth.AuthMiddleware(deps.TokenManager))
		r.Use(middleware.TrackUser)
		r.Use(middleware.RateLimitByUser(deps.APILimiter))

		r.Get("/usage", deps.SearchHandler.Usage)

		r.Post("/search/prospects", deps.SearchHandler.SearchProspects)
		r.Post("/search/public-emails", deps.SearchHandler.FindPublicEmails)

		r.Post("/outreach/generate", deps.OutreachHandler.Generate)
	})
}
