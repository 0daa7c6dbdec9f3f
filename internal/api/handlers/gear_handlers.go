package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Gear Handlers ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListGear handles GET /api/gear?category=
func (h *Handlers) ListGear(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListGearItems(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondStoreError(w, err, "Failed to fetch gear items")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(items))
}

// CreateGear handles POST /api/gear
func (h *Handlers) CreateGear(w http.ResponseWriter, r *http.Request) {
	var item models.GearItem
	if err := decodeBody(w, r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	item.ID = ""
	if err := h.Store.CreateGearItem(r.Context(), &item); err != nil {
		respondStoreError(w, err, "Failed to create gear item")
		return
	}
	log.Info().Str("gear", item.Label()).Str("id", item.ID).Msg("Gear item added")
	respondJSON(w, http.StatusCreated, item)
}

// GetGear handles GET /api/gear/{id}
func (h *Handlers) GetGear(w http.ResponseWriter, r *http.Request) {
	item, err := h.Store.GetGearItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "Failed to fetch gear item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// UpdateGear handles PATCH /api/gear/{id}
func (h *Handlers) UpdateGear(w http.ResponseWriter, r *http.Request) {
	var patch models.GearItemPatch
	if err := decodeBody(w, r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	item, err := h.Store.UpdateGearItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondStoreError(w, err, "Failed to update gear item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// DeleteGear handles DELETE /api/gear/{id}. Performance records for the
// item are kept.
func (h *Handlers) DeleteGear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteGearItem(r.Context(), id); err != nil {
		respondStoreError(w, err, "Failed to delete gear item")
		return
	}
	log.Info().Str("id", id).Msg("Gear item retired")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// ClassifyGear handles POST /api/gear/classify
func (h *Handlers) ClassifyGear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}
	respondJSON(w, http.StatusOK, h.Classifier.Classify(r.Context(), req.Description))
}

// ── Performance ─────────────────────────────────────────────

// CreatePerformance handles POST /api/gear/{id}/performance. The path id
// wins over any gearId in the body.
func (h *Handlers) CreatePerformance(w http.ResponseWriter, r *http.Request) {
	var perf models.GearPerformance
	if err := decodeBody(w, r, &perf); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	perf.ID = ""
	perf.GearID = chi.URLParam(r, "id")
	if err := h.Store.CreateGearPerformance(r.Context(), &perf); err != nil {
		respondStoreError(w, err, "Failed to record performance")
		return
	}
	respondJSON(w, http.StatusCreated, perf)
}

// ListPerformance handles GET /api/gear/{id}/performance
func (h *Handlers) ListPerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := h.Store.ListGearPerformance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "Failed to fetch performance data")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(perf))
}
