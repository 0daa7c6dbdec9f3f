package models

import (
	"fmt"
	"strings"
	"time"
)

// ── Gear Categories ──────────────────────────────────────────

// GearCategory is the closed set of inventory categories.
type GearCategory string

const (
	CategoryBaseLayer            GearCategory = "base_layer"
	CategoryInsulation           GearCategory = "insulation"
	CategoryShell                GearCategory = "shell"
	CategoryFootwear             GearCategory = "footwear"
	CategoryAccessories          GearCategory = "accessories"
	CategoryPants                GearCategory = "pants"
	CategoryHeadwear             GearCategory = "headwear"
	CategoryGloves               GearCategory = "gloves"
	CategorySleepSystem          GearCategory = "sleep_system"
	CategoryShelter              GearCategory = "shelter"
	CategoryNavigation           GearCategory = "navigation"
	CategorySafety               GearCategory = "safety"
	CategoryHydration            GearCategory = "hydration"
	CategoryNutrition            GearCategory = "nutrition"
	CategorySpecializedEquipment GearCategory = "specialized_equipment"
)

// Categories lists every valid category in declaration order.
var Categories = []GearCategory{
	CategoryBaseLayer,
	CategoryInsulation,
	CategoryShell,
	CategoryFootwear,
	CategoryAccessories,
	CategoryPants,
	CategoryHeadwear,
	CategoryGloves,
	CategorySleepSystem,
	CategoryShelter,
	CategoryNavigation,
	CategorySafety,
	CategoryHydration,
	CategoryNutrition,
	CategorySpecializedEquipment,
}

// CategoryNames returns the category enum as plain strings.
func CategoryNames() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = string(c)
	}
	return out
}

// Valid reports whether c is one of the enumerated categories.
func (c GearCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label renders a category as a section header: "sleep_system" → "SLEEP SYSTEM".
func (c GearCategory) Label() string {
	return strings.ToUpper(strings.ReplaceAll(string(c), "_", " "))
}

// DefaultGearStatus is assigned to gear created without an explicit status.
const DefaultGearStatus = "active"

// ── Gear Item ────────────────────────────────────────────────

type GearItem struct {
	ID             string                 `json:"id"`
	Brand          string                 `json:"brand"`
	Model          string                 `json:"model"`
	Category       GearCategory           `json:"category"`
	Subcategory    string                 `json:"subcategory,omitempty"`
	Size           string                 `json:"size,omitempty"`
	PurchaseDate   string                 `json:"purchaseDate,omitempty"`
	Cost           *float64               `json:"cost,omitempty"`
	WeightGrams    *int                   `json:"weightGrams,omitempty"`
	Status         string                 `json:"status"`
	Specifications map[string]interface{} `json:"specifications,omitempty"`
	Compatibility  map[string]interface{} `json:"compatibility,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Label is the human-readable "Brand Model" form used in chat replies.
func (g *GearItem) Label() string {
	return g.Brand + " " + g.Model
}

// Validate checks the required fields and the category enum, and applies
// the default status.
func (g *GearItem) Validate() error {
	g.Brand = strings.TrimSpace(g.Brand)
	g.Model = strings.TrimSpace(g.Model)
	if g.Brand == "" {
		return &ValidationError{Field: "brand", Reason: "is required"}
	}
	if g.Model == "" {
		return &ValidationError{Field: "model", Reason: "is required"}
	}
	if g.Category == "" {
		return &ValidationError{Field: "category", Reason: "is required"}
	}
	if !g.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", g.Category)}
	}
	if g.Cost != nil && *g.Cost < 0 {
		return &ValidationError{Field: "cost", Reason: "must not be negative"}
	}
	if g.WeightGrams != nil && *g.WeightGrams < 0 {
		return &ValidationError{Field: "weightGrams", Reason: "must not be negative"}
	}
	if g.Status == "" {
		g.Status = DefaultGearStatus
	}
	return nil
}

// GearItemPatch carries a partial update. Nil fields are left untouched.
type GearItemPatch struct {
	Brand          *string                `json:"brand,omitempty"`
	Model          *string                `json:"model,omitempty"`
	Category       *GearCategory          `json:"category,omitempty"`
	Subcategory    *string                `json:"subcategory,omitempty"`
	Size           *string                `json:"size,omitempty"`
	PurchaseDate   *string                `json:"purchaseDate,omitempty"`
	Cost           *float64               `json:"cost,omitempty"`
	WeightGrams    *int                   `json:"weightGrams,omitempty"`
	Status         *string                `json:"status,omitempty"`
	Specifications map[string]interface{} `json:"specifications,omitempty"`
	Compatibility  map[string]interface{} `json:"compatibility,omitempty"`
}

// Apply merges the patch into g and re-validates the result.
func (p *GearItemPatch) Apply(g *GearItem) error {
	if p.Brand != nil {
		g.Brand = *p.Brand
	}
	if p.Model != nil {
		g.Model = *p.Model
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.Subcategory != nil {
		g.Subcategory = *p.Subcategory
	}
	if p.Size != nil {
		g.Size = *p.Size
	}
	if p.PurchaseDate != nil {
		g.PurchaseDate = *p.PurchaseDate
	}
	if p.Cost != nil {
		g.Cost = p.Cost
	}
	if p.WeightGrams != nil {
		g.WeightGrams = p.WeightGrams
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.Specifications != nil {
		g.Specifications = p.Specifications
	}
	if p.Compatibility != nil {
		g.Compatibility = p.Compatibility
	}
	return g.Validate()
}

// ── Gear Performance ─────────────────────────────────────────

const (
	MinRating = 1
	MaxRating = 10
)

// DateLayout is the calendar-date format used for dateLogged and trip dates.
const DateLayout = "2006-01-02"

type GearPerformance struct {
	ID                 string                 `json:"id"`
	GearID             string                 `json:"gearId"`
	ActivityType       string                 `json:"activityType,omitempty"`
	SpecificActivity   string                 `json:"specificActivity,omitempty"`
	Conditions         map[string]interface{} `json:"conditions,omitempty"`
	Rating             int                    `json:"rating"`
	PerformanceAspects map[string]float64     `json:"performanceAspects,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	DateLogged         string                 `json:"dateLogged,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
}

// Validate enforces the rating range on the record and its aspects.
func (p *GearPerformance) Validate() error {
	if strings.TrimSpace(p.GearID) == "" {
		return &ValidationError{Field: "gearId", Reason: "is required"}
	}
	if p.Rating < MinRating || p.Rating > MaxRating {
		return &ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)}
	}
	for name, score := range p.PerformanceAspects {
		if score < MinRating || score > MaxRating {
			return &ValidationError{Field: "performanceAspects." + name, Reason: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)}
		}
	}
	return nil
}

// ── Trips ────────────────────────────────────────────────────

type Trip struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Location           string                 `json:"location,omitempty"`
	StartDate          string                 `json:"startDate,omitempty"`
	EndDate            string                 `json:"endDate,omitempty"`
	Activities         []string               `json:"activities,omitempty"`
	ExpectedConditions map[string]interface{} `json:"expectedConditions,omitempty"`
	GearUsed           []string               `json:"gearUsed,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	WeatherData        *WeatherData           `json:"weatherData,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
}

func (t *Trip) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	return nil
}

// TripPatch carries a partial trip update. Nil fields are left untouched.
type TripPatch struct {
	Name               *string                `json:"name,omitempty"`
	Location           *string                `json:"location,omitempty"`
	StartDate          *string                `json:"startDate,omitempty"`
	EndDate            *string                `json:"endDate,omitempty"`
	Activities         []string               `json:"activities,omitempty"`
	ExpectedConditions map[string]interface{} `json:"expectedConditions,omitempty"`
	GearUsed           []string               `json:"gearUsed,omitempty"`
	Notes              *string                `json:"notes,omitempty"`
	WeatherData        *WeatherData           `json:"weatherData,omitempty"`
}

func (p *TripPatch) Apply(t *Trip) error {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Location != nil {
		t.Location = *p.Location
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		t.EndDate = *p.EndDate
	}
	if p.Activities != nil {
		t.Activities = p.Activities
	}
	if p.ExpectedConditions != nil {
		t.ExpectedConditions = p.ExpectedConditions
	}
	if p.GearUsed != nil {
		t.GearUsed = p.GearUsed
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.WeatherData != nil {
		t.WeatherData = p.WeatherData
	}
	return t.Validate()
}

// ── Chat Transcript ──────────────────────────────────────────

// ChatMessage is one persisted chat exchange. FunctionCalls is keyed by
// function name, so a function requested twice in one turn keeps only the
// arguments of the last call.
type ChatMessage struct {
	ID            string                            `json:"id"`
	Message       string                            `json:"message"`
	Response      string                            `json:"response,omitempty"`
	FunctionCalls map[string]map[string]interface{} `json:"functionCalls,omitempty"`
	Timestamp     time.Time                         `json:"timestamp"`
}

// ── Weather ──────────────────────────────────────────────────

type WeatherData struct {
	Location string           `json:"location"`
	Current  CurrentWeather   `json:"current"`
	Forecast []ForecastPeriod `json:"forecast"`
}

type CurrentWeather struct {
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

type ForecastPeriod struct {
	Date          string  `json:"date"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Condition     string  `json:"condition"`
	Precipitation float64 `json:"precipitation"`
}

// ── Analytics ────────────────────────────────────────────────

type GapPriority string

const (
	PriorityHigh   GapPriority = "high"
	PriorityMedium GapPriority = "medium"
	PriorityLow    GapPriority = "low"
)

type GearGap struct {
	Category    string      `json:"category"`
	Priority    GapPriority `json:"priority"`
	Reason      string      `json:"reason"`
	Suggestions []string    `json:"suggestions"`
}

type LayeringConditions struct {
	Temperature float64 `json:"temperature"`
	Weather     string  `json:"weather"`
	Season      string  `json:"season,omitempty"`
}

type Layers struct {
	Base  []string `json:"base"`
	Mid   []string `json:"mid"`
	Shell []string `json:"shell"`
}

type LayeringRecommendation struct {
	Activity    string             `json:"activity"`
	Conditions  LayeringConditions `json:"conditions"`
	Layers      Layers             `json:"layers"`
	Accessories []string           `json:"accessories"`
}

type GearScore struct {
	Overall         int            `json:"overall"`
	Categories      map[string]int `json:"categories"`
	Recommendations []string       `json:"recommendations"`
}

type GearStats struct {
	TotalItems        int            `json:"totalItems"`
	TripsPlanned      int            `json:"tripsPlanned"`
	AverageRating     float64        `json:"averageRating"`
	CategoryBreakdown map[string]int `json:"categoryBreakdown"`
}

// ── Errors ───────────────────────────────────────────────────

// ValidationError reports a schema violation on an inbound record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
