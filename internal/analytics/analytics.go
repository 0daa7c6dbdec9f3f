// Package analytics derives gear gaps, layering advice and a coverage score
// from an inventory. Every function is pure: the same inventory always
// yields the same result.
package analytics

import (
	"math"
	"strings"

	"github.com/gearbox-app/gearbox/pkg/models"
)

// midLayer is the inventory category that plays the insulating mid layer.
const midLayer = models.CategoryInsulation

// countByCategory tallies items per category.
func countByCategory(items []models.GearItem) map[models.GearCategory]int {
	counts := make(map[models.GearCategory]int)
	for _, it := range items {
		counts[it.Category]++
	}
	return counts
}

// ── Gaps ─────────────────────────────────────────────────────

// AnalyzeGearGaps lists the essential categories the inventory is missing,
// plus activity-specific gaps for the given activities.
func AnalyzeGearGaps(items []models.GearItem, activities []string) []models.GearGap {
	counts := countByCategory(items)
	gaps := make([]models.GearGap, 0)

	if counts[models.CategoryBaseLayer] < 2 {
		gaps = append(gaps, models.GearGap{
			Category:    string(models.CategoryBaseLayer),
			Priority:    models.PriorityHigh,
			Reason:      "Need both warm and cool weather base layers",
			Suggestions: []string{"Merino wool base layer", "Synthetic moisture-wicking shirt"},
		})
	}
	if counts[models.CategoryShell] == 0 {
		gaps = append(gaps, models.GearGap{
			Category:    string(models.CategoryShell),
			Priority:    models.PriorityHigh,
			Reason:      "Essential weather protection missing",
			Suggestions: []string{"Hardshell rain jacket", "Windbreaker for lighter conditions"},
		})
	}
	if counts[midLayer] == 0 {
		gaps = append(gaps, models.GearGap{
			Category:    string(midLayer),
			Priority:    models.PriorityMedium,
			Reason:      "Insulation layer for variable conditions",
			Suggestions: []string{"Fleece jacket", "Synthetic insulation layer", "Down jacket"},
		})
	}
	if counts[models.CategoryFootwear] == 0 {
		gaps = append(gaps, models.GearGap{
			Category:    string(models.CategoryFootwear),
			Priority:    models.PriorityHigh,
			Reason:      "Proper footwear critical for safety and comfort",
			Suggestions: []string{"Hiking boots", "Trail running shoes", "Approach shoes"},
		})
	}

	if anyActivity(activities, "climbing", "alpine") && counts[models.CategorySafety] == 0 {
		gaps = append(gaps, models.GearGap{
			Category:    string(models.CategorySafety),
			Priority:    models.PriorityMedium,
			Reason:      "Technical terrain calls for protective gear",
			Suggestions: []string{"Climbing helmet", "Headlamp", "First aid kit"},
		})
	}
	if anyActivity(activities, "hiking", "backpacking") && counts[models.CategoryHydration] == 0 {
		gaps = append(gaps, models.GearGap{
			Category:    string(models.CategoryHydration),
			Priority:    models.PriorityLow,
			Reason:      "Long days on trail need a water carry plan",
			Suggestions: []string{"Hydration bladder", "Insulated water bottle", "Water filter"},
		})
	}
	return gaps
}

func anyActivity(activities []string, keywords ...string) bool {
	for _, a := range activities {
		if activityMatches(a, keywords...) {
			return true
		}
	}
	return false
}

func activityMatches(activity string, keywords ...string) bool {
	a := strings.ToLower(activity)
	for _, k := range keywords {
		if strings.Contains(a, k) {
			return true
		}
	}
	return false
}

// ── Layering ─────────────────────────────────────────────────

// RecommendLayering suggests base, mid and shell layers for the conditions
// and appends owned items from the matching categories.
func RecommendLayering(activity string, cond models.LayeringConditions, items []models.GearItem) models.LayeringRecommendation {
	temp := cond.Temperature
	weather := strings.ToLower(cond.Weather)

	rec := models.LayeringRecommendation{
		Activity:    activity,
		Conditions:  cond,
		Layers:      models.Layers{Base: []string{}, Mid: []string{}, Shell: []string{}},
		Accessories: []string{},
	}

	switch {
	case temp < 0:
		rec.Layers.Base = append(rec.Layers.Base, "Heavy merino wool base layer")
	case temp < 15:
		rec.Layers.Base = append(rec.Layers.Base, "Medium weight base layer")
	default:
		rec.Layers.Base = append(rec.Layers.Base, "Lightweight moisture-wicking shirt")
	}

	switch {
	case temp < 5:
		rec.Layers.Mid = append(rec.Layers.Mid, "Insulated jacket or heavy fleece")
	case temp < 15:
		rec.Layers.Mid = append(rec.Layers.Mid, "Light fleece or softshell")
	}

	wet := strings.Contains(weather, "rain") || strings.Contains(weather, "snow")
	switch {
	case wet || strings.Contains(weather, "wind"):
		rec.Layers.Shell = append(rec.Layers.Shell, "Waterproof hardshell jacket")
	case temp < 20:
		rec.Layers.Shell = append(rec.Layers.Shell, "Windbreaker or light shell")
	}

	if activityMatches(activity, "climbing", "alpine") {
		rec.Accessories = append(rec.Accessories, "Helmet", "Gloves", "Approach shoes")
	}
	if activityMatches(activity, "hiking", "backpacking") {
		rec.Accessories = append(rec.Accessories, "Hiking poles", "Daypack or backpack")
	}

	// Owned items only join a layer that is actually recommended.
	for _, it := range items {
		owned := it.Label() + " (owned)"
		switch it.Category {
		case models.CategoryBaseLayer:
			rec.Layers.Base = append(rec.Layers.Base, owned)
		case midLayer:
			if len(rec.Layers.Mid) > 0 {
				rec.Layers.Mid = append(rec.Layers.Mid, owned)
			}
		case models.CategoryShell:
			if len(rec.Layers.Shell) > 0 {
				rec.Layers.Shell = append(rec.Layers.Shell, owned)
			}
		}
	}
	return rec
}

// ── Score ────────────────────────────────────────────────────

type weightedCategory struct {
	category models.GearCategory
	weight   float64
}

var scoreWeights = []weightedCategory{
	{models.CategoryBaseLayer, 0.20},
	{midLayer, 0.20},
	{models.CategoryShell, 0.25},
	{models.CategoryFootwear, 0.25},
	{models.CategoryAccessories, 0.10},
}

// CalculateGearScore rates coverage of the core categories on 0..100.
func CalculateGearScore(items []models.GearItem) models.GearScore {
	counts := countByCategory(items)
	score := models.GearScore{
		Categories:      make(map[string]int, len(scoreWeights)),
		Recommendations: []string{},
	}

	var overall float64
	for _, wc := range scoreWeights {
		s := counts[wc.category] * 25
		if s > 100 {
			s = 100
		}
		score.Categories[string(wc.category)] = s
		overall += float64(s) * wc.weight
		if s < 50 {
			name := strings.Replace(string(wc.category), "_", " ", 1)
			score.Recommendations = append(score.Recommendations, "Add more "+name+" options")
		}
	}
	score.Overall = int(math.Round(overall))
	return score
}

// ── Stats ────────────────────────────────────────────────────

// Stats summarises the inventory. averageRating covers only performance
// records whose gear item still exists, rounded to one decimal.
func Stats(items []models.GearItem, trips int, perf []models.GearPerformance) models.GearStats {
	stats := models.GearStats{
		TotalItems:        len(items),
		TripsPlanned:      trips,
		CategoryBreakdown: make(map[string]int),
	}
	existing := make(map[string]struct{}, len(items))
	for _, it := range items {
		existing[it.ID] = struct{}{}
		stats.CategoryBreakdown[string(it.Category)]++
	}

	var sum, n int
	for _, p := range perf {
		if _, ok := existing[p.GearID]; !ok {
			continue
		}
		sum += p.Rating
		n++
	}
	if n > 0 {
		stats.AverageRating = math.Round(float64(sum)/float64(n)*10) / 10
	}
	return stats
}
