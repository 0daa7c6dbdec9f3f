package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Trip Handlers ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListTrips handles GET /api/trips
func (h *Handlers) ListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.Store.ListTrips(r.Context())
	if err != nil {
		respondStoreError(w, err, "Failed to fetch trips")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(trips))
}

// CreateTrip handles POST /api/trips. A trip with a location and no
// weatherData gets a forecast snapshot attached.
func (h *Handlers) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var trip models.Trip
	if err := decodeBody(w, r, &trip); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	trip.ID = ""
	if err := trip.Validate(); err != nil {
		respondStoreError(w, err, "Failed to create trip")
		return
	}

	if trip.WeatherData == nil && strings.TrimSpace(trip.Location) != "" && h.Weather != nil {
		wx := h.Weather.Forecast(r.Context(), trip.Location, tripWindow(trip))
		trip.WeatherData = &wx
	}

	if err := h.Store.CreateTrip(r.Context(), &trip); err != nil {
		respondStoreError(w, err, "Failed to create trip")
		return
	}
	log.Info().Str("trip", trip.Name).Str("id", trip.ID).Msg("Trip planned")
	respondJSON(w, http.StatusCreated, trip)
}

func tripWindow(t models.Trip) string {
	switch {
	case t.StartDate != "" && t.EndDate != "":
		return t.StartDate + "/" + t.EndDate
	case t.StartDate != "":
		return t.StartDate
	default:
		return ""
	}
}

// GetTrip handles GET /api/trips/{id}
func (h *Handlers) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.Store.GetTrip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "Failed to fetch trip")
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// UpdateTrip handles PATCH /api/trips/{id}
func (h *Handlers) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	var patch models.TripPatch
	if err := decodeBody(w, r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	trip, err := h.Store.UpdateTrip(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondStoreError(w, err, "Failed to update trip")
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// ── Weather ─────────────────────────────────────────────────

// GetWeather handles GET /api/weather/{location}?dates=
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(chi.URLParam(r, "location"))
	if location == "" {
		respondError(w, http.StatusBadRequest, "location is required")
		return
	}
	respondJSON(w, http.StatusOK, h.Weather.Forecast(r.Context(), location, r.URL.Query().Get("dates")))
}
