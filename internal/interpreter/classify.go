package interpreter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/internal/telemetry"
	"github.com/gearbox-app/gearbox/pkg/models"
)

// Classification is the model's guess at a category for a gear description.
type Classification struct {
	Category    models.GearCategory `json:"category"`
	Subcategory string              `json:"subcategory,omitempty"`
	Confidence  float64             `json:"confidence"`
}

var classifyFallback = Classification{Category: models.CategoryAccessories, Confidence: 0.1}

// Classify asks the model to categorise a free-text gear description. Any
// failure, or a category outside the enum, yields accessories at 0.1.
func (in *Interpreter) Classify(ctx context.Context, description string) Classification {
	ctx, span := telemetry.Tracer().Start(ctx, "interpreter.Classify")
	defer span.End()

	req := &llm.Request{
		System: "You are an expert at classifying outdoor gear. Classify the gear into one of these categories: " +
			strings.Join(models.CategoryNames(), ", ") +
			". Also provide a subcategory and a confidence score between 0 and 1. " +
			`Respond with JSON: {"category": "...", "subcategory": "...", "confidence": 0.0}.`,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Classify this gear: " + description}},
		Temperature: in.temperature,
		MaxTokens:   in.maxTokens,
		JSON:        true,
	}
	resp, err := in.model.Complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("Gear classification failed")
		return classifyFallback
	}

	var raw struct {
		Category    string   `json:"category"`
		Subcategory string   `json:"subcategory"`
		Confidence  *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &raw); err != nil {
		log.Warn().Err(err).Msg("Gear classification returned invalid JSON")
		return classifyFallback
	}

	cat := models.GearCategory(strings.ToLower(strings.TrimSpace(raw.Category)))
	if cat == "" {
		cat = models.CategoryAccessories
	}
	if !cat.Valid() {
		log.Warn().Str("category", raw.Category).Msg("Gear classification returned unknown category")
		return classifyFallback
	}
	out := Classification{Category: cat, Subcategory: raw.Subcategory, Confidence: 0.5}
	if raw.Confidence != nil && *raw.Confidence > 0 && *raw.Confidence <= 1 {
		out.Confidence = *raw.Confidence
	}
	return out
}

// stripFences removes a ```json fence some models wrap around JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
