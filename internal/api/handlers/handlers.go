// Package handlers implements the HTTP handlers for the Gearbox API.
// All handlers depend on the store.Store interface; chat turns go through
// the chat orchestrator, and weather lookups through weather.Provider.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/internal/chat"
	"github.com/gearbox-app/gearbox/internal/interpreter"
	"github.com/gearbox-app/gearbox/internal/store"
	"github.com/gearbox-app/gearbox/internal/weather"
	"github.com/gearbox-app/gearbox/pkg/models"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Chatter runs a single chat turn.
type Chatter interface {
	Handle(ctx context.Context, message string) (*chat.Reply, error)
}

// Classifier guesses a category for a free-text gear description.
type Classifier interface {
	Classify(ctx context.Context, description string) interpreter.Classification
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Store        store.Store
	Orchestrator Chatter
	Weather      weather.Provider
	Classifier   Classifier
}

// New creates a new Handlers instance with all dependencies.
func New(s store.Store, c Chatter, wx weather.Provider, cl Classifier) *Handlers {
	return &Handlers{Store: s, Orchestrator: c, Weather: wx, Classifier: cl}
}

// ── Helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// respondStoreError maps store and validation errors to a status code.
// Validation reasons are user-facing; anything else is logged and replaced
// by the generic message.
func respondStoreError(w http.ResponseWriter, err error, generic string) {
	var nf *store.ErrNotFound
	var ve *models.ValidationError
	switch {
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, nf.Entity+" not found")
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, generic+": "+ve.Error())
	default:
		log.Error().Err(err).Msg(generic)
		respondError(w, http.StatusInternalServerError, generic)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
