package interpreter

import (
	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/pkg/models"
)

// Function names the model may call.
const (
	FnDeleteGearItem      = "delete_gear_item"
	FnAddGearItem         = "add_gear_item"
	FnRateGearPerformance = "rate_gear_performance"
	FnSearchGear          = "search_gear"
	FnPlanTripGear        = "plan_trip_gear"
	FnAnalyzeGearGaps     = "analyze_gear_gaps"
)

func str(desc string) map[string]any {
	s := map[string]any{"type": "string"}
	if desc != "" {
		s["description"] = desc
	}
	return s
}

func score() map[string]any {
	return map[string]any{"type": "number", "minimum": models.MinRating, "maximum": models.MaxRating}
}

func stringList() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func object(props map[string]any, required ...string) map[string]any {
	o := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}

// Catalog returns the fixed set of functions offered to the model.
func Catalog() []llm.FunctionDecl {
	return []llm.FunctionDecl{
		{
			Name:        FnDeleteGearItem,
			Description: "Delete a gear item from inventory by brand and model",
			Parameters: object(map[string]any{
				"brand": str("Brand of the gear to delete"),
				"model": str("Model of the gear to delete"),
			}, "brand", "model"),
		},
		{
			Name:        FnAddGearItem,
			Description: "Add new gear to inventory",
			Parameters: object(map[string]any{
				"brand":          str(""),
				"model":          str(""),
				"category":       map[string]any{"type": "string", "enum": models.CategoryNames()},
				"subcategory":    str(""),
				"size":           str(""),
				"cost":           map[string]any{"type": "number"},
				"weightGrams":    map[string]any{"type": "number"},
				"specifications": map[string]any{"type": "object"},
			}, "brand", "model", "category"),
		},
		{
			Name:        FnRateGearPerformance,
			Description: "Rate how gear performed in specific activities and conditions",
			Parameters: object(map[string]any{
				"gearId":           str("Id of the gear, or its brand and model"),
				"rating":           score(),
				"activityType":     str("Type of activity - use natural language based on what user describes"),
				"specificActivity": str("Specific context: '3-day family camping', 'morning trail run', etc"),
				"conditions": object(map[string]any{
					"temperature": map[string]any{"type": "number"},
					"weather":     str(""),
					"terrain":     str(""),
					"duration":    str(""),
					"intensity":   str(""),
				}),
				"performanceAspects": object(map[string]any{
					"comfort":           score(),
					"durability":        score(),
					"weatherProtection": score(),
					"breathability":     score(),
					"versatility":       score(),
				}),
				"notes": str(""),
			}, "gearId", "rating", "activityType"),
		},
		{
			Name:        FnSearchGear,
			Description: "Search and filter gear inventory",
			Parameters: object(map[string]any{
				"category": str(""),
				"brand":    str(""),
				"query":    str(""),
			}),
		},
		{
			Name:        FnPlanTripGear,
			Description: "Generate gear recommendations for a planned trip",
			Parameters: object(map[string]any{
				"location":           str(""),
				"dates":              str(""),
				"activities":         stringList(),
				"expectedConditions": map[string]any{"type": "object"},
			}, "location", "activities"),
		},
		{
			Name:        FnAnalyzeGearGaps,
			Description: "Identify missing gear for user's activities",
			Parameters: object(map[string]any{
				"activities":    stringList(),
				"currentIssues": stringList(),
			}),
		},
	}
}
