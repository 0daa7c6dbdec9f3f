// Package executor applies the structured calls requested by the model to
// the equipment store.
//
// All calls from one message are dispatched together and joined with
// settle-all semantics: a failing or panicking call yields an Outcome with
// Err set and never cancels or blocks its siblings.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/gearbox-app/gearbox/internal/interpreter"
	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/internal/store"
	"github.com/gearbox-app/gearbox/internal/telemetry"
	"github.com/gearbox-app/gearbox/pkg/models"
)

// Pass-through markers the UI acts on; they touch no storage.
const (
	FnAnalyzeGearSetup  = "analyze_gear_setup"
	FnRecommendLayering = "recommend_layering"
)

// Outcome is the settled result of one call. Value is nil when the call
// failed or the function is unknown.
type Outcome struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
	Err   error  `json:"-"`
}

// Result holds outcomes in call order, plus the gear snapshot if one was
// loaded or was already in hand.
type Result struct {
	Outcomes []Outcome
	Snapshot []models.GearItem
}

// Executor runs structured calls against the store.
type Executor struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store) *Executor {
	return &Executor{store: s, now: time.Now}
}

// Execute runs every call concurrently and waits for all of them. A nil
// snapshot means none has been loaded yet; an empty non-nil one is a
// loaded, empty inventory.
func (e *Executor) Execute(ctx context.Context, calls []llm.FunctionCall, snapshot []models.GearItem) Result {
	if len(calls) == 0 {
		return Result{Snapshot: snapshot}
	}

	// Reference resolution needs the inventory; load it once up front.
	if snapshot == nil && needsSnapshot(calls) {
		items, err := e.store.ListGearItems(ctx, "")
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load gear snapshot for reference resolution")
		} else {
			snapshot = items
		}
	}

	r := &run{exec: e, snapshot: snapshot}
	outcomes := make([]Outcome, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			outcomes[i] = r.safeDispatch(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return Result{Outcomes: outcomes, Snapshot: r.result()}
}

func needsSnapshot(calls []llm.FunctionCall) bool {
	for _, c := range calls {
		if c.Name == interpreter.FnDeleteGearItem || c.Name == interpreter.FnRateGearPerformance {
			return true
		}
	}
	return false
}

// run is the per-Execute state shared by the fan-out goroutines.
type run struct {
	exec     *Executor
	snapshot []models.GearItem

	mu      sync.Mutex
	fetched []models.GearItem
}

func (r *run) result() []models.GearItem {
	if r.snapshot != nil {
		return r.snapshot
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetched
}

func (r *run) safeDispatch(ctx context.Context, call llm.FunctionCall) (out Outcome) {
	ctx, span := telemetry.Tracer().Start(ctx, "executor."+call.Name)
	defer span.End()

	out.Name = call.Name
	defer func() {
		if p := recover(); p != nil {
			out = Outcome{Name: call.Name, Err: fmt.Errorf("panic in %s: %v", call.Name, p)}
		}
		if out.Err != nil {
			log.Warn().Err(out.Err).Str("function", call.Name).Msg("Function call failed")
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, "call failed")
		}
	}()

	value, err := r.dispatch(ctx, call)
	span.SetAttributes(attribute.Bool("call.ok", err == nil))
	if err != nil {
		return Outcome{Name: call.Name, Err: err}
	}
	return Outcome{Name: call.Name, Value: value}
}

func (r *run) dispatch(ctx context.Context, call llm.FunctionCall) (any, error) {
	switch call.Name {
	case interpreter.FnDeleteGearItem:
		return r.deleteGearItem(ctx, call.Arguments)
	case interpreter.FnAddGearItem:
		return r.addGearItem(ctx, call.Arguments)
	case interpreter.FnRateGearPerformance:
		return r.rateGearPerformance(ctx, call.Arguments)
	case interpreter.FnSearchGear:
		return r.searchGear(ctx, call.Arguments)
	case interpreter.FnPlanTripGear, interpreter.FnAnalyzeGearGaps, FnAnalyzeGearSetup, FnRecommendLayering:
		return map[string]any{"action": call.Name, "args": call.Arguments}, nil
	default:
		log.Debug().Str("function", call.Name).Msg("Unknown function requested")
		return nil, nil
	}
}

// ── delete_gear_item ────────────────────────────────────────

type deleteArgs struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
}

func (r *run) deleteGearItem(ctx context.Context, raw map[string]any) (any, error) {
	var args deleteArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	brand := strings.ToLower(strings.TrimSpace(args.Brand))
	model := strings.ToLower(strings.TrimSpace(args.Model))

	for _, it := range r.snapshot {
		if strings.ToLower(it.Brand) == brand && strings.ToLower(it.Model) == model {
			if err := r.exec.store.DeleteGearItem(ctx, it.ID); err != nil {
				return nil, fmt.Errorf("delete %s: %w", it.ID, err)
			}
			item := it
			return map[string]any{"deleted": true, "item": &item}, nil
		}
	}
	return map[string]any{"deleted": false, "reason": "Item not found"}, nil
}

// ── add_gear_item ───────────────────────────────────────────

type addArgs struct {
	Brand          string                 `json:"brand"`
	Model          string                 `json:"model"`
	Category       string                 `json:"category"`
	Subcategory    string                 `json:"subcategory"`
	Size           string                 `json:"size"`
	PurchaseDate   string                 `json:"purchaseDate"`
	Cost           *float64               `json:"cost"`
	WeightGrams    *float64               `json:"weightGrams"`
	Status         string                 `json:"status"`
	Specifications map[string]interface{} `json:"specifications"`
	Compatibility  map[string]interface{} `json:"compatibility"`
}

func (r *run) addGearItem(ctx context.Context, raw map[string]any) (any, error) {
	var args addArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	item := &models.GearItem{
		Brand:          args.Brand,
		Model:          args.Model,
		Category:       models.GearCategory(strings.ToLower(strings.TrimSpace(args.Category))),
		Subcategory:    args.Subcategory,
		Size:           args.Size,
		PurchaseDate:   args.PurchaseDate,
		Cost:           args.Cost,
		Status:         args.Status,
		Specifications: args.Specifications,
		Compatibility:  args.Compatibility,
	}
	if args.WeightGrams != nil {
		w := int(math.Round(*args.WeightGrams))
		item.WeightGrams = &w
	}
	if err := r.exec.store.CreateGearItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add gear item: %w", err)
	}
	return item, nil
}

// ── rate_gear_performance ───────────────────────────────────

type rateArgs struct {
	GearID             string                 `json:"gearId"`
	Rating             float64                `json:"rating"`
	ActivityType       string                 `json:"activityType"`
	SpecificActivity   string                 `json:"specificActivity"`
	Conditions         map[string]interface{} `json:"conditions"`
	PerformanceAspects map[string]float64     `json:"performanceAspects"`
	Notes              string                 `json:"notes"`
}

func (r *run) rateGearPerformance(ctx context.Context, raw map[string]any) (any, error) {
	var args rateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Rating < models.MinRating || args.Rating > models.MaxRating {
		return nil, &models.ValidationError{
			Field:  "rating",
			Reason: fmt.Sprintf("must be between %d and %d, got %v", models.MinRating, models.MaxRating, args.Rating),
		}
	}
	perf := &models.GearPerformance{
		GearID:             ResolveGearID(args.GearID, r.snapshot),
		ActivityType:       args.ActivityType,
		SpecificActivity:   args.SpecificActivity,
		Conditions:         args.Conditions,
		Rating:             int(math.Round(args.Rating)),
		PerformanceAspects: args.PerformanceAspects,
		Notes:              args.Notes,
		DateLogged:         r.exec.now().UTC().Format(models.DateLayout),
	}
	if err := r.exec.store.CreateGearPerformance(ctx, perf); err != nil {
		return nil, fmt.Errorf("rate gear performance: %w", err)
	}
	return perf, nil
}

// ResolveGearID maps a model-supplied reference to a real gear id: an exact
// id match first, then the first item whose lower-cased brand and model
// both appear in the hint. Misses are logged and the hint is returned
// verbatim.
func ResolveGearID(hint string, snapshot []models.GearItem) string {
	for _, it := range snapshot {
		if it.ID == hint {
			return hint
		}
	}
	lower := strings.ToLower(hint)
	for _, it := range snapshot {
		brand, model := strings.ToLower(it.Brand), strings.ToLower(it.Model)
		if brand != "" && model != "" && strings.Contains(lower, brand) && strings.Contains(lower, model) {
			return it.ID
		}
	}
	log.Warn().Str("hint", hint).Int("snapshot", len(snapshot)).Msg("Gear reference not resolved, using hint verbatim")
	return hint
}

// ── search_gear ─────────────────────────────────────────────

type searchArgs struct {
	Category string `json:"category"`
}

func (r *run) searchGear(ctx context.Context, raw map[string]any) (any, error) {
	if r.snapshot != nil {
		return r.snapshot, nil
	}
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	items, err := r.exec.store.ListGearItems(ctx, args.Category)
	if err != nil {
		return nil, fmt.Errorf("search gear: %w", err)
	}
	r.mu.Lock()
	r.fetched = items
	r.mu.Unlock()
	return items, nil
}

// decodeArgs maps a loosely typed argument object onto a typed struct.
func decodeArgs(raw map[string]any, dst any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
