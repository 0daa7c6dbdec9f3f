package handlers

import (
	"net/http"
	"strings"

	"github.com/gearbox-app/gearbox/internal/analytics"
	"github.com/gearbox-app/gearbox/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Analytics Handlers ───────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Stats handles GET /api/analytics/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.Store.ListGearItems(ctx, "")
	if err != nil {
		respondStoreError(w, err, "Failed to fetch analytics")
		return
	}
	trips, err := h.Store.ListTrips(ctx)
	if err != nil {
		respondStoreError(w, err, "Failed to fetch analytics")
		return
	}
	perf, err := h.Store.ListAllGearPerformance(ctx)
	if err != nil {
		respondStoreError(w, err, "Failed to fetch analytics")
		return
	}
	respondJSON(w, http.StatusOK, analytics.Stats(items, len(trips), perf))
}

// Gaps handles GET /api/analytics/gaps?activities=a,b
func (h *Handlers) Gaps(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListGearItems(r.Context(), "")
	if err != nil {
		respondStoreError(w, err, "Failed to analyze gear gaps")
		return
	}
	var activities []string
	for _, a := range strings.Split(r.URL.Query().Get("activities"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			activities = append(activities, a)
		}
	}
	respondJSON(w, http.StatusOK, nonNil(analytics.AnalyzeGearGaps(items, activities)))
}

// Score handles GET /api/analytics/score
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListGearItems(r.Context(), "")
	if err != nil {
		respondStoreError(w, err, "Failed to score gear")
		return
	}
	respondJSON(w, http.StatusOK, analytics.CalculateGearScore(items))
}

type layeringRequest struct {
	Activity   string                    `json:"activity"`
	Conditions models.LayeringConditions `json:"conditions"`
}

// Layering handles POST /api/analytics/layering
func (h *Handlers) Layering(w http.ResponseWriter, r *http.Request) {
	var req layeringRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Activity) == "" {
		respondError(w, http.StatusBadRequest, "activity is required")
		return
	}
	items, err := h.Store.ListGearItems(r.Context(), "")
	if err != nil {
		respondStoreError(w, err, "Failed to recommend layering")
		return
	}
	respondJSON(w, http.StatusOK, analytics.RecommendLayering(req.Activity, req.Conditions, items))
}
