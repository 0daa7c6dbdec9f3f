// Package interpreter turns a free-text chat message into reply text and
// zero or more structured function calls by asking a language model.
package interpreter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/internal/telemetry"
	"github.com/gearbox-app/gearbox/pkg/models"
)

const (
	// ApologyText is returned whenever the model call fails.
	ApologyText = "I'm having trouble processing your request right now. Please try again."

	genericReply = "I'm here to help with your outdoor gear."

	// Replies shorter than this are replaced with a templated one.
	minReplyLength = 10

	// maxHistoryPairs is how many prior exchanges are embedded in the prompt.
	maxHistoryPairs = 4
)

const basePrompt = `You are an expert outdoor gear assistant. Provide detailed conversational responses about outdoor gear while calling appropriate functions.

When users mention NEW gear they own, respond with insights and call add_gear_item. CRITICAL: Always specify the correct category:
- "headwear" for ANY hat, cap, helmet, beanie, buff (NOT accessories)
- "gloves" for gloves, mittens, hand warmers
- "specialized_equipment" for skis, bikes, climbing gear, kayaks
- "accessories" for backpacks, headlamps, compasses, carabiners, small gear
- "shelter" for tents, tarps, bivies
- "sleep_system" for sleeping bags, pads, pillows
- "hydration" for water bottles, filters, hydration packs
- "nutrition" for stoves, cookware, food storage
- "safety" for first aid, avalanche gear, protection
- "navigation" for GPS, maps, compass
- "insulation" for down jackets, synthetic fill, fleece, vests
- "pants" for hiking pants, rain pants, base layer bottoms
- "base_layer" for next-to-skin tops
- "shell" for rain jackets, hardshells, windbreakers
- "footwear" for boots, trail runners, approach shoes, sandals
When users elaborate on EXISTING gear (referencing items already in their collection), respond with insights but DO NOT add duplicates - instead call rate_gear_performance if they mention ratings or performance details.
When users ask to delete/remove/retire gear, call delete_gear_item with the brand and model.
When users ask about inventory, call search_gear.

CRITICAL RULE: When users ask to "list gear", "show gear", or ask about their inventory, you MUST include the complete formatted gear list with all items in your response. Never respond with just "Here's your gear collection" - always show the actual list with brands, models, and categories.

Always be conversational and provide specific technical details about gear characteristics. When you execute functions, acknowledge the specific action taken (e.g., "Added your Smartwool Merino 150 base layer to inventory" rather than generic responses).`

// Input is everything the interpreter needs for one message.
type Input struct {
	Message  string
	History  []models.ChatMessage
	Snapshot []models.GearItem
}

// Result is the normalized model output.
type Result struct {
	Response string
	Calls    []llm.FunctionCall
}

// Interpreter builds prompts and normalizes model output.
type Interpreter struct {
	model       llm.Completer
	temperature float32
	maxTokens   int
}

func New(model llm.Completer, temperature float32, maxTokens int) *Interpreter {
	return &Interpreter{model: model, temperature: temperature, maxTokens: maxTokens}
}

// Interpret never returns an error: a failed model call yields ApologyText
// and no calls.
func (in *Interpreter) Interpret(ctx context.Context, input Input) Result {
	ctx, span := telemetry.Tracer().Start(ctx, "interpreter.Interpret")
	defer span.End()

	req := &llm.Request{
		System:      SystemPrompt(input.Snapshot, input.History),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: UserPrompt(input.Message, input.Snapshot)}},
		Functions:   Catalog(),
		Temperature: in.temperature,
		MaxTokens:   in.maxTokens,
	}

	resp, err := in.model.Complete(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("Model call failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return Result{Response: ApologyText}
	}

	span.SetAttributes(
		attribute.String("llm.provider", resp.Provider),
		attribute.Int("llm.calls", len(resp.Calls)),
	)

	text := resp.Content
	if len(strings.TrimSpace(text)) < minReplyLength {
		text = templatedReply(resp.Calls)
	}
	return Result{Response: text, Calls: resp.Calls}
}

// templatedReply picks a reply from the first matching function in
// priority order add, delete, rate, search.
func templatedReply(calls []llm.FunctionCall) string {
	if c, ok := findCall(calls, FnAddGearItem); ok {
		return fmt.Sprintf("Added %s %s to your gear inventory.", argString(c.Arguments, "brand"), argString(c.Arguments, "model"))
	}
	if c, ok := findCall(calls, FnDeleteGearItem); ok {
		return fmt.Sprintf("Removed %s %s from your inventory.", argString(c.Arguments, "brand"), argString(c.Arguments, "model"))
	}
	if _, ok := findCall(calls, FnRateGearPerformance); ok {
		return "Logged performance rating for your gear."
	}
	if _, ok := findCall(calls, FnSearchGear); ok {
		return "Here's your gear collection."
	}
	return genericReply
}

func findCall(calls []llm.FunctionCall, name string) (llm.FunctionCall, bool) {
	for _, c := range calls {
		if c.Name == name {
			return c, true
		}
	}
	return llm.FunctionCall{}, false
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ── Prompt construction ─────────────────────────────────────

// SystemPrompt appends the owned-gear summary and recent history to the
// base instructions.
func SystemPrompt(snapshot []models.GearItem, history []models.ChatMessage) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if len(snapshot) > 0 {
		fmt.Fprintf(&b, "\n\nUser's current gear collection (%d items):\n", len(snapshot))
		for i, g := range groupByCategory(snapshot) {
			if i > 0 {
				b.WriteString("\n")
			}
			names := make([]string, len(g.items))
			for j, it := range g.items {
				names[j] = itemName(it)
			}
			fmt.Fprintf(&b, "%s: %s", strings.ToUpper(string(g.category)), strings.Join(names, ", "))
		}
		b.WriteString("\n\nIMPORTANT: When users mention gear by brand/model that ALREADY EXISTS in their collection above, do NOT add it again. " +
			"Instead, respond with insights about that existing gear and call rate_gear_performance if they provide ratings or performance feedback.")
		b.WriteString("\n\nOnly call add_gear_item for genuinely NEW items not already in their collection.")
		b.WriteString("\n\nWhen user asks to \"list gear\" or \"show gear\", provide this complete formatted list in your response.")
	}

	if len(history) > 0 {
		recent := history
		if len(recent) > maxHistoryPairs {
			recent = recent[len(recent)-maxHistoryPairs:]
		}
		pairs := make([]string, len(recent))
		for i, h := range recent {
			pairs[i] = fmt.Sprintf("User: %s\nAssistant: %s", h.Message, h.Response)
		}
		b.WriteString("\n\nCONVERSATION HISTORY (remember these exact interactions):\n")
		b.WriteString(strings.Join(pairs, "\n\n"))
		b.WriteString("\n\nBase your responses on this actual conversation history. Be specific about what was discussed.")
	}
	return b.String()
}

// UserPrompt embeds the formatted inventory when the message asks for a
// listing and there is something to list.
func UserPrompt(message string, snapshot []models.GearItem) string {
	lower := strings.ToLower(message)
	if len(snapshot) == 0 || !(strings.Contains(lower, "list") || strings.Contains(lower, "show")) {
		return message
	}
	return fmt.Sprintf("%s\n\nHere is my gear inventory (%d items total):\n\n%s\n\nPlease format this nicely and provide analysis.",
		message, len(snapshot), FormatInventory(snapshot))
}

// FormatInventory renders a bulleted inventory grouped by category, in the
// order categories first appear.
func FormatInventory(items []models.GearItem) string {
	groups := groupByCategory(items)
	sections := make([]string, len(groups))
	for i, g := range groups {
		lines := make([]string, 0, len(g.items)+1)
		lines = append(lines, "**"+g.category.Label()+"**")
		for _, it := range g.items {
			line := "• " + itemName(it)
			if it.Cost != nil && *it.Cost != 0 {
				line += " - €" + strconv.FormatFloat(*it.Cost, 'f', -1, 64)
			}
			lines = append(lines, line)
		}
		sections[i] = strings.Join(lines, "\n")
	}
	return strings.Join(sections, "\n\n")
}

// CategoryCount is the number of distinct categories in items.
func CategoryCount(items []models.GearItem) int {
	return len(groupByCategory(items))
}

type categoryGroup struct {
	category models.GearCategory
	items    []models.GearItem
}

func groupByCategory(items []models.GearItem) []categoryGroup {
	var groups []categoryGroup
	index := make(map[models.GearCategory]int)
	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			i = len(groups)
			index[it.Category] = i
			groups = append(groups, categoryGroup{category: it.Category})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups
}

func itemName(it models.GearItem) string {
	name := it.Label()
	if it.Size != "" {
		name += " (" + it.Size + ")"
	}
	return name
}
