// Package store provides the storage interface and implementations for Gearbox.
// The in-memory store backs local development and tests; the SQL store
// serves both SQLite (embedded) and PostgreSQL deployments.
package store

import (
	"context"
	"fmt"

	"github.com/gearbox-app/gearbox/pkg/models"
	"github.com/google/uuid"
)

// Store is the primary storage interface.
// All handler and pipeline code depends on this interface, so backends can
// be swapped without touching callers.
type Store interface {
	GearStore
	PerformanceStore
	TripStore
	ChatStore

	// Ping checks if the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error
}

// ── Gear Store ──────────────────────────────────────────────

type GearStore interface {
	// ListGearItems returns gear in creation order. An empty category
	// returns every item.
	ListGearItems(ctx context.Context, category string) ([]models.GearItem, error)
	GetGearItem(ctx context.Context, id string) (*models.GearItem, error)
	CreateGearItem(ctx context.Context, item *models.GearItem) error
	UpdateGearItem(ctx context.Context, id string, patch models.GearItemPatch) (*models.GearItem, error)
	DeleteGearItem(ctx context.Context, id string) error
}

// ── Performance Store ───────────────────────────────────────

// PerformanceStore is append-only. Records are never updated or deleted,
// and deleting a gear item leaves its records in place.
type PerformanceStore interface {
	CreateGearPerformance(ctx context.Context, perf *models.GearPerformance) error
	ListGearPerformance(ctx context.Context, gearID string) ([]models.GearPerformance, error)
	ListAllGearPerformance(ctx context.Context) ([]models.GearPerformance, error)
}

// ── Trip Store ──────────────────────────────────────────────

type TripStore interface {
	ListTrips(ctx context.Context) ([]models.Trip, error)
	GetTrip(ctx context.Context, id string) (*models.Trip, error)
	CreateTrip(ctx context.Context, trip *models.Trip) error
	UpdateTrip(ctx context.Context, id string, patch models.TripPatch) (*models.Trip, error)
}

// ── Chat Store ──────────────────────────────────────────────

type ChatStore interface {
	CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error

	// ChatHistory returns at most limit of the most recent entries, oldest first.
	ChatHistory(ctx context.Context, limit int) ([]models.ChatMessage, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ── Helpers ─────────────────────────────────────────────────

// NewID returns a UUIDv7 string. Within one process the sequence is
// strictly increasing, so sorting by id yields creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New opens the backend named by driver.
func New(ctx context.Context, driver, dataDir, sqlitePath, databaseURL string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(dataDir), nil
	case "sqlite":
		return OpenSQLite(ctx, sqlitePath)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
