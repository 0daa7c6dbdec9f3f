// In-memory Store implementation.
// Used for local development and tests. Supports file-based snapshot
// persistence so data survives restarts.

package store

import (
	"context"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gearbox-app/gearbox/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Gear         map[string]*models.GearItem        `json:"gear"`
	Performance  map[string]*models.GearPerformance `json:"performance"`
	Trips        map[string]*models.Trip            `json:"trips"`
	ChatMessages []*models.ChatMessage              `json:"chat_messages"`
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu           sync.RWMutex
	gear         map[string]*models.GearItem        // key: id
	performance  map[string]*models.GearPerformance // key: id
	trips        map[string]*models.Trip            // key: id
	chatMessages []*models.ChatMessage              // append-only log

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save loop to stop
	loopDone     chan struct{} // closed when the save loop has exited
}

// NewMemoryStore creates a new in-memory store.
// When dataDir is non-empty, data is persisted to dataDir/gearbox.json.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		gear:         make(map[string]*models.GearItem),
		performance:  make(map[string]*models.GearPerformance),
		trips:        make(map[string]*models.Trip),
		chatMessages: make([]*models.ChatMessage, 0),
		saveCh:       make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
		loopDone:     make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "gearbox.json")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	} else {
		close(m.loopDone)
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop debounces save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	defer close(m.loopDone)
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			select {
			case <-m.doneCh:
				return
			case <-time.After(500 * time.Millisecond):
			}
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Gear:         m.gear,
		Performance:  m.performance,
		Trips:        m.trips,
		ChatMessages: m.chatMessages,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}
	log.Debug().Str("path", m.snapshotPath).Int("bytes", len(data)).Msg("Snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Gear != nil {
		m.gear = snap.Gear
	}
	if snap.Performance != nil {
		m.performance = snap.Performance
	}
	if snap.Trips != nil {
		m.trips = snap.Trips
	}
	if snap.ChatMessages != nil {
		m.chatMessages = snap.ChatMessages
	}

	log.Info().
		Int("gear", len(m.gear)).
		Int("trips", len(m.trips)).
		Int("chat_messages", len(m.chatMessages)).
		Msg("Loaded snapshot from disk")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the save loop and forces a final snapshot write.
// Safe to call multiple times (second call is a no-op).
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}
	<-m.loopDone

	if m.snapshotPath != "" {
		log.Info().Msg("Flushing final snapshot before shutdown...")
		m.saveSnapshot()
	}

	log.Info().Msg("Memory store closed")
	return nil
}

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// ── Gear Store ──────────────────────────────────────────────

func (m *MemoryStore) ListGearItems(_ context.Context, category string) ([]models.GearItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.GearItem, 0, len(m.gear))
	for _, g := range m.gear {
		if category == "" || string(g.Category) == category {
			result = append(result, *cloneGear(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) GetGearItem(_ context.Context, id string) (*models.GearItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gear[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "gear item", Key: id}
	}
	return cloneGear(g), nil
}

func (m *MemoryStore) CreateGearItem(_ context.Context, item *models.GearItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.ID = NewID()
	item.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	m.gear[item.ID] = cloneGear(item)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateGearItem(_ context.Context, id string, patch models.GearItemPatch) (*models.GearItem, error) {
	m.mu.Lock()
	existing, ok := m.gear[id]
	if !ok {
		m.mu.Unlock()
		return nil, &ErrNotFound{Entity: "gear item", Key: id}
	}
	updated := *existing
	if err := patch.Apply(&updated); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.gear[id] = cloneGear(&updated)
	m.mu.Unlock()
	m.requestSave()

	return cloneGear(&updated), nil
}

func (m *MemoryStore) DeleteGearItem(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.gear[id]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "gear item", Key: id}
	}
	delete(m.gear, id)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Performance Store ───────────────────────────────────────

func (m *MemoryStore) CreateGearPerformance(_ context.Context, perf *models.GearPerformance) error {
	if err := perf.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	perf.ID = NewID()
	perf.CreatedAt = now
	if perf.DateLogged == "" {
		perf.DateLogged = now.Format(models.DateLayout)
	}

	m.mu.Lock()
	m.performance[perf.ID] = clonePerformance(perf)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListGearPerformance(_ context.Context, gearID string) ([]models.GearPerformance, error) {
	return m.listPerformance(func(p *models.GearPerformance) bool { return p.GearID == gearID }), nil
}

func (m *MemoryStore) ListAllGearPerformance(_ context.Context) ([]models.GearPerformance, error) {
	return m.listPerformance(func(*models.GearPerformance) bool { return true }), nil
}

func (m *MemoryStore) listPerformance(match func(*models.GearPerformance) bool) []models.GearPerformance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.GearPerformance, 0)
	for _, p := range m.performance {
		if match(p) {
			result = append(result, *clonePerformance(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ── Trip Store ──────────────────────────────────────────────

func (m *MemoryStore) ListTrips(_ context.Context) ([]models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		result = append(result, *cloneTrip(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) GetTrip(_ context.Context, id string) (*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "trip", Key: id}
	}
	return cloneTrip(t), nil
}

func (m *MemoryStore) CreateTrip(_ context.Context, trip *models.Trip) error {
	if err := trip.Validate(); err != nil {
		return err
	}
	trip.ID = NewID()
	trip.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	m.trips[trip.ID] = cloneTrip(trip)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateTrip(_ context.Context, id string, patch models.TripPatch) (*models.Trip, error) {
	m.mu.Lock()
	existing, ok := m.trips[id]
	if !ok {
		m.mu.Unlock()
		return nil, &ErrNotFound{Entity: "trip", Key: id}
	}
	updated := *existing
	if err := patch.Apply(&updated); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.trips[id] = cloneTrip(&updated)
	m.mu.Unlock()
	m.requestSave()

	return cloneTrip(&updated), nil
}

// ── Chat Store ──────────────────────────────────────────────

func (m *MemoryStore) CreateChatMessage(_ context.Context, msg *models.ChatMessage) error {
	if msg.Message == "" {
		return &models.ValidationError{Field: "message", Reason: "is required"}
	}
	msg.ID = NewID()
	msg.Timestamp = time.Now().UTC()

	m.mu.Lock()
	m.chatMessages = append(m.chatMessages, cloneChatMessage(msg))
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ChatHistory(_ context.Context, limit int) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if limit > 0 && len(m.chatMessages) > limit {
		start = len(m.chatMessages) - limit
	}
	result := make([]models.ChatMessage, 0, len(m.chatMessages)-start)
	for _, msg := range m.chatMessages[start:] {
		result = append(result, *cloneChatMessage(msg))
	}
	return result, nil
}

// ── Copies ──────────────────────────────────────────────────

// Records are copied on the way in and on the way out, so no caller holds
// a map or slice that saveSnapshot reads concurrently.

func cloneGear(g *models.GearItem) *models.GearItem {
	c := *g
	if g.Cost != nil {
		v := *g.Cost
		c.Cost = &v
	}
	if g.WeightGrams != nil {
		v := *g.WeightGrams
		c.WeightGrams = &v
	}
	c.Specifications = cloneMap(g.Specifications)
	c.Compatibility = cloneMap(g.Compatibility)
	return &c
}

func clonePerformance(p *models.GearPerformance) *models.GearPerformance {
	c := *p
	c.Conditions = cloneMap(p.Conditions)
	c.PerformanceAspects = maps.Clone(p.PerformanceAspects)
	return &c
}

func cloneTrip(t *models.Trip) *models.Trip {
	c := *t
	c.Activities = slices.Clone(t.Activities)
	c.GearUsed = slices.Clone(t.GearUsed)
	c.ExpectedConditions = cloneMap(t.ExpectedConditions)
	if t.WeatherData != nil {
		wx := *t.WeatherData
		wx.Forecast = slices.Clone(t.WeatherData.Forecast)
		c.WeatherData = &wx
	}
	return &c
}

func cloneChatMessage(msg *models.ChatMessage) *models.ChatMessage {
	c := *msg
	if msg.FunctionCalls != nil {
		c.FunctionCalls = make(map[string]map[string]interface{}, len(msg.FunctionCalls))
		for name, args := range msg.FunctionCalls {
			c.FunctionCalls[name] = cloneMap(args)
		}
	}
	return &c
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return cloneMap(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
