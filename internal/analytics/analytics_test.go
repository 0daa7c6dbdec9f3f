package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-app/gearbox/pkg/models"
)

func item(id string, cat models.GearCategory) models.GearItem {
	return models.GearItem{ID: id, Brand: "Brand" + id, Model: "Model" + id, Category: cat}
}

func gapCategories(gaps []models.GearGap) []string {
	out := make([]string, len(gaps))
	for i, g := range gaps {
		out[i] = g.Category
	}
	return out
}

func TestAnalyzeGearGaps_EmptyInventory(t *testing.T) {
	gaps := AnalyzeGearGaps(nil, nil)
	assert.Equal(t, []string{"base_layer", "shell", "insulation", "footwear"}, gapCategories(gaps))
	assert.Equal(t, models.PriorityHigh, gaps[0].Priority)
	assert.Equal(t, models.PriorityMedium, gaps[2].Priority)
}

func TestAnalyzeGearGaps_Complete(t *testing.T) {
	items := []models.GearItem{
		item("1", models.CategoryBaseLayer),
		item("2", models.CategoryBaseLayer),
		item("3", models.CategoryShell),
		item("4", models.CategoryInsulation),
		item("5", models.CategoryFootwear),
	}
	assert.Empty(t, AnalyzeGearGaps(items, nil))
}

func TestAnalyzeGearGaps_Activities(t *testing.T) {
	items := []models.GearItem{
		item("1", models.CategoryBaseLayer),
		item("2", models.CategoryBaseLayer),
		item("3", models.CategoryShell),
		item("4", models.CategoryInsulation),
		item("5", models.CategoryFootwear),
	}
	gaps := AnalyzeGearGaps(items, []string{"Alpine climbing", "backpacking"})
	assert.Equal(t, []string{"safety", "hydration"}, gapCategories(gaps))

	items = append(items, item("6", models.CategorySafety))
	gaps = AnalyzeGearGaps(items, []string{"alpine"})
	assert.Empty(t, gaps)
}

func TestAnalyzeGearGaps_Idempotent(t *testing.T) {
	items := []models.GearItem{item("1", models.CategoryShell)}
	assert.Equal(t, AnalyzeGearGaps(items, []string{"hiking"}), AnalyzeGearGaps(items, []string{"hiking"}))
}

func TestRecommendLayering_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		temp    float64
		weather string
		base    string
		mid     []string
		shell   []string
	}{
		{"freezing snow", -5, "snow", "Heavy merino wool base layer", []string{"Insulated jacket or heavy fleece"}, []string{"Waterproof hardshell jacket"}},
		{"cool clear", 10, "clear", "Medium weight base layer", []string{"Light fleece or softshell"}, []string{"Windbreaker or light shell"}},
		{"mild windy", 18, "Windy", "Lightweight moisture-wicking shirt", []string{}, []string{"Waterproof hardshell jacket"}},
		{"warm sunny", 25, "sunny", "Lightweight moisture-wicking shirt", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := RecommendLayering("walking", models.LayeringConditions{Temperature: tt.temp, Weather: tt.weather}, nil)
			assert.Equal(t, []string{tt.base}, rec.Layers.Base)
			assert.Equal(t, tt.mid, rec.Layers.Mid)
			assert.Equal(t, tt.shell, rec.Layers.Shell)
			assert.Empty(t, rec.Accessories)
		})
	}
}

func TestRecommendLayering_AccessoriesAndOwned(t *testing.T) {
	items := []models.GearItem{
		{ID: "1", Brand: "Smartwool", Model: "250", Category: models.CategoryBaseLayer},
		{ID: "2", Brand: "Rab", Model: "Microlight", Category: models.CategoryInsulation},
		{ID: "3", Brand: "Arcteryx", Model: "Beta AR", Category: models.CategoryShell},
		{ID: "4", Brand: "Petzl", Model: "Meteor", Category: models.CategorySafety},
	}
	rec := RecommendLayering("alpine hiking", models.LayeringConditions{Temperature: 2, Weather: "rain"}, items)

	assert.Equal(t, []string{"Helmet", "Gloves", "Approach shoes", "Hiking poles", "Daypack or backpack"}, rec.Accessories)
	assert.Contains(t, rec.Layers.Base, "Smartwool 250 (owned)")
	assert.Contains(t, rec.Layers.Mid, "Rab Microlight (owned)")
	assert.Contains(t, rec.Layers.Shell, "Arcteryx Beta AR (owned)")

	// No mid layer is recommended in warm weather, so owned insulation stays out.
	warm := RecommendLayering("hiking", models.LayeringConditions{Temperature: 25, Weather: "sunny"}, items)
	assert.Empty(t, warm.Layers.Mid)
}

func TestCalculateGearScore(t *testing.T) {
	empty := CalculateGearScore(nil)
	assert.Equal(t, 0, empty.Overall)
	assert.Equal(t, []string{
		"Add more base layer options",
		"Add more insulation options",
		"Add more shell options",
		"Add more footwear options",
		"Add more accessories options",
	}, empty.Recommendations)

	var items []models.GearItem
	for _, cat := range []models.GearCategory{
		models.CategoryBaseLayer, models.CategoryInsulation, models.CategoryShell,
		models.CategoryFootwear, models.CategoryAccessories,
	} {
		for i := 0; i < 6; i++ {
			items = append(items, item(string(cat), cat))
		}
	}
	full := CalculateGearScore(items)
	assert.Equal(t, 100, full.Overall)
	assert.Empty(t, full.Recommendations)
	for _, s := range full.Categories {
		assert.Equal(t, 100, s)
	}

	partial := CalculateGearScore([]models.GearItem{
		item("1", models.CategoryShell),
		item("2", models.CategoryShell),
		item("3", models.CategoryFootwear),
	})
	// shell 50*.25 + footwear 25*.25 = 18.75
	assert.Equal(t, 19, partial.Overall)
	assert.Equal(t, 50, partial.Categories["shell"])
}

func TestCalculateGearScore_Bounds(t *testing.T) {
	var items []models.GearItem
	for n := 0; n < 40; n++ {
		items = append(items, item("x", models.Categories[n%len(models.Categories)]))
		s := CalculateGearScore(items)
		require.GreaterOrEqual(t, s.Overall, 0)
		require.LessOrEqual(t, s.Overall, 100)
	}
}

func TestStats_AverageIgnoresOrphans(t *testing.T) {
	items := []models.GearItem{item("a", models.CategoryShell), item("b", models.CategoryShell), item("c", models.CategoryFootwear)}
	perf := []models.GearPerformance{
		{GearID: "a", Rating: 8},
		{GearID: "b", Rating: 7},
		{GearID: "c", Rating: 8},
		{GearID: "deleted", Rating: 1},
	}
	stats := Stats(items, 2, perf)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.TripsPlanned)
	assert.Equal(t, 7.7, stats.AverageRating)
	assert.Equal(t, map[string]int{"shell": 2, "footwear": 1}, stats.CategoryBreakdown)

	assert.Equal(t, 0.0, Stats(nil, 0, perf).AverageRating)
}
