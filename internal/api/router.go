package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gearbox-app/gearbox/internal/api/handlers"
	"github.com/gearbox-app/gearbox/internal/api/middleware"
	"github.com/gearbox-app/gearbox/internal/config"
)

const serviceName = "gearbox"

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Trace-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.NewAPIKeyAuth(cfg.Auth.APIKeys).Middleware)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		// Chat
		r.Post("/chat", h.Chat)
		r.With(chimw.NoCache).Get("/chat/history", h.ChatHistory)

		// Gear
		r.Route("/gear", func(r chi.Router) {
			r.Get("/", h.ListGear)
			r.Post("/", h.CreateGear)
			r.Post("/classify", h.ClassifyGear)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetGear)
				r.Patch("/", h.UpdateGear)
				r.Delete("/", h.DeleteGear)
				r.Get("/performance", h.ListPerformance)
				r.Post("/performance", h.CreatePerformance)
			})
		})

		// Trips
		r.Route("/trips", func(r chi.Router) {
			r.Get("/", h.ListTrips)
			r.Post("/", h.CreateTrip)
			r.Get("/{id}", h.GetTrip)
			r.Patch("/{id}", h.UpdateTrip)
		})

		r.Get("/weather/{location}", h.GetWeather)

		// Analytics
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/stats", h.Stats)
			r.Get("/gaps", h.Gaps)
			r.Get("/score", h.Score)
			r.Post("/layering", h.Layering)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{
			"version": cfg.Version,
			"service": serviceName,
		})
	}
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
