package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/marketing-engine/internal/tracking"
)

// SetupRoutes configures the full router: the JSON API under /api and the
// unauthenticated tracking endpoints at the root.
func SetupRoutes(h *Handlers, trackingHandler *tracking.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://ignite.com", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)

	// Tracking endpoints live outside /api: they are hit from email clients
	// with no auth and must never require headers a mail client won't send.
	r.Mount("/", trackingHandler.Routes())

	r.Route("/api", func(r chi.Router) {
		r.Post("/trigger", h.HandleTrigger)

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.HandleCreateCampaign)
			r.Get("/", h.HandleListCampaigns)
			r.Get("/{id}", h.HandleGetCampaign)
			r.Post("/{id}/send", h.HandleSendCampaign)
			r.Post("/{id}/test", h.HandleTestCampaign)
			r.Post("/{id}/schedule", h.HandleScheduleCampaign)
			r.Get("/{id}/preflight", h.HandlePreflight)
			r.Get("/{id}/stats", h.HandleCampaignStats)
		})

		r.Route("/segments", func(r chi.Router) {
			r.Post("/", h.HandleCreateSegment)
			r.Get("/", h.HandleListSegments)
			r.Post("/preview", h.HandlePreviewSegment)
		})

		r.Route("/automations", func(r chi.Router) {
			r.Post("/{id}/pause", h.HandlePauseAutomation)
			r.Post("/{id}/activate", h.HandleActivateAutomation)
			r.Get("/queue/stats", h.HandleQueueStats)
		})

		r.Post("/maintenance/run", h.HandleRunMaintenance)
	})

	return r
}
