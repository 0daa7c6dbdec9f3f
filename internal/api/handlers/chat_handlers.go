package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/internal/chat"
)

const defaultHistoryLimit = 50

// ══════════════════════════════════════════════════════════════
// ── Chat Handlers ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Chat handles POST /api/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.Orchestrator.Handle(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidMessage) {
			respondError(w, http.StatusBadRequest, "Message is required")
			return
		}
		log.Error().Err(err).Msg("Chat error")
		respondError(w, http.StatusInternalServerError, "Failed to process chat message")
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

// ChatHistory handles GET /api/chat/history?limit=. A missing or invalid
// limit means 50.
func (h *Handlers) ChatHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	history, err := h.Store.ChatHistory(r.Context(), limit)
	if err != nil {
		respondStoreError(w, err, "Failed to fetch chat history")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(history))
}
