package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/internal/api/middleware"
	"github.com/eldtechnologies/aidesk/internal/config"
	"github.com/eldtechnologies/aidesk/internal/handlers"
)

// NewRouter creates the local bridge router over the synchronization core.
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.RequireJSON)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Dashboard pages served from a dev server call the bridge cross-origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(cfg.BridgeToken))

		r.Get("/state", h.State)
		r.Get("/notifications", h.Notifications)
		r.Post("/refresh", h.Refresh)

		r.Post("/chats/{id}/select", h.SelectChat)
		r.Delete("/selection", h.Deselect)
		r.Post("/chats/{id}/read", h.MarkRead)
		r.Put("/chats/{id}/ai", h.SetAI)
		r.Post("/chats/{id}/tags", h.AddTag)
		r.Delete("/chats/{id}/tags/{tag}", h.RemoveTag)
		r.Delete("/chats/{id}", h.DeleteChat)
		r.Post("/chats/{id}/sync-vk", h.SyncVK)

		r.Post("/messages", h.SendMessage)

		r.Get("/stats", h.Stats)
		r.Get("/ai/context", h.GetAIContext)
		r.Put("/ai/context", h.PutAIContext)
	})

	return r
}
