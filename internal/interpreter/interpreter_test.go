package interpreter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/pkg/models"
)

// fakeModel records the last request and replies with a canned response.
type fakeModel struct {
	resp *llm.Response
	err  error
	last *llm.Request
}

func (f *fakeModel) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func cost(f float64) *float64 { return &f }

func snapshot() []models.GearItem {
	return []models.GearItem{
		{ID: "1", Brand: "Smartwool", Model: "Merino 150", Category: models.CategoryBaseLayer, Size: "M", Cost: cost(85)},
		{ID: "2", Brand: "Arcteryx", Model: "Beta AR", Category: models.CategoryShell, Cost: cost(599.5)},
		{ID: "3", Brand: "Icebreaker", Model: "Oasis", Category: models.CategoryBaseLayer},
		{ID: "4", Brand: "Therm-a-Rest", Model: "NeoAir", Category: models.CategorySleepSystem, Cost: cost(0)},
	}
}

func TestInterpret_PassesCatalogAndText(t *testing.T) {
	model := &fakeModel{resp: &llm.Response{
		Content: "Added your Rab Neutrino down jacket to the insulation category.",
		Calls: []llm.FunctionCall{{Name: FnAddGearItem, Arguments: map[string]any{
			"brand": "Rab", "model": "Neutrino", "category": "insulation",
		}}},
	}}
	res := New(model, 0.3, 500).Interpret(context.Background(), Input{Message: "I just bought a Rab Neutrino"})

	assert.Equal(t, model.resp.Content, res.Response)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, FnAddGearItem, res.Calls[0].Name)

	require.NotNil(t, model.last)
	assert.Len(t, model.last.Functions, 6)
	assert.Equal(t, float32(0.3), model.last.Temperature)
	assert.Equal(t, "I just bought a Rab Neutrino", model.last.Messages[0].Content)
}

func TestInterpret_ModelErrorApologises(t *testing.T) {
	res := New(&fakeModel{err: errors.New("quota")}, 0.3, 0).Interpret(context.Background(), Input{Message: "hi"})
	assert.Equal(t, ApologyText, res.Response)
	assert.Empty(t, res.Calls)
}

func TestInterpret_MalformedToolArgumentsApologise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "Done, removed it for you.", "tool_calls": [
			{"id": "c1", "type": "function", "function": {"name": "delete_gear_item", "arguments": "{\"brand\":"}}
		]}}]}`))
	}))
	defer srv.Close()

	router := llm.NewRouter(llm.NewOpenAI(srv.URL, "sk-test", "gpt-4o"))
	res := New(router, 0.7, 1000).Interpret(context.Background(), Input{Message: "remove my old boots"})
	assert.Equal(t, ApologyText, res.Response)
	assert.Empty(t, res.Calls)
}

func TestInterpret_TemplatedReplies(t *testing.T) {
	add := llm.FunctionCall{Name: FnAddGearItem, Arguments: map[string]any{"brand": "Patagonia", "model": "Houdini"}}
	del := llm.FunctionCall{Name: FnDeleteGearItem, Arguments: map[string]any{"brand": "Old", "model": "Boots"}}
	rate := llm.FunctionCall{Name: FnRateGearPerformance, Arguments: map[string]any{}}
	search := llm.FunctionCall{Name: FnSearchGear}
	plan := llm.FunctionCall{Name: FnPlanTripGear}

	tests := []struct {
		name  string
		text  string
		calls []llm.FunctionCall
		want  string
	}{
		{"add wins over delete", "", []llm.FunctionCall{del, add}, "Added Patagonia Houdini to your gear inventory."},
		{"delete", "ok", []llm.FunctionCall{rate, del}, "Removed Old Boots from your inventory."},
		{"rate", "  done    ", []llm.FunctionCall{search, rate}, "Logged performance rating for your gear."},
		{"search", "", []llm.FunctionCall{search}, "Here's your gear collection."},
		{"generic", "", []llm.FunctionCall{plan}, "I'm here to help with your outdoor gear."},
		{"no calls", "", nil, "I'm here to help with your outdoor gear."},
		{"long enough text kept", "Sure thing!", []llm.FunctionCall{add}, "Sure thing!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{resp: &llm.Response{Content: tt.text, Calls: tt.calls}}
			res := New(model, 0, 0).Interpret(context.Background(), Input{Message: "x"})
			assert.Equal(t, tt.want, res.Response)
		})
	}
}

func TestSystemPrompt_SnapshotAndHistory(t *testing.T) {
	var history []models.ChatMessage
	for _, m := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		history = append(history, models.ChatMessage{Message: m, Response: "re-" + m})
	}
	prompt := SystemPrompt(snapshot(), history)

	assert.Contains(t, prompt, "User's current gear collection (4 items):")
	assert.Contains(t, prompt, "BASE_LAYER: Smartwool Merino 150 (M), Icebreaker Oasis")
	assert.Contains(t, prompt, "SHELL: Arcteryx Beta AR")
	assert.Contains(t, prompt, "do NOT add it again")
	assert.NotContains(t, prompt, "User: h2\n")
	assert.Contains(t, prompt, "User: h3\nAssistant: re-h3")
	assert.Contains(t, prompt, "User: h6\nAssistant: re-h6")

	bare := SystemPrompt(nil, nil)
	assert.NotContains(t, bare, "current gear collection")
	assert.NotContains(t, bare, "CONVERSATION HISTORY")
}

func TestUserPrompt_EmbedsInventoryForListing(t *testing.T) {
	assert.Equal(t, "what boots for scotland?", UserPrompt("what boots for scotland?", snapshot()))
	assert.Equal(t, "show my gear", UserPrompt("show my gear", nil))

	p := UserPrompt("Please LIST everything", snapshot())
	assert.True(t, strings.HasPrefix(p, "Please LIST everything\n\nHere is my gear inventory (4 items total):"))
	assert.Contains(t, p, "• Arcteryx Beta AR - €599.5")
}

func TestFormatInventory(t *testing.T) {
	want := "**BASE LAYER**\n" +
		"• Smartwool Merino 150 (M) - €85\n" +
		"• Icebreaker Oasis\n\n" +
		"**SHELL**\n" +
		"• Arcteryx Beta AR - €599.5\n\n" +
		"**SLEEP SYSTEM**\n" +
		"• Therm-a-Rest NeoAir"
	assert.Equal(t, want, FormatInventory(snapshot()))
	assert.Equal(t, 3, CategoryCount(snapshot()))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
		want    Classification
	}{
		{"valid", `{"category":"headwear","subcategory":"beanie","confidence":0.92}`, nil,
			Classification{Category: models.CategoryHeadwear, Subcategory: "beanie", Confidence: 0.92}},
		{"fenced", "```json\n{\"category\":\"Shelter\"}\n```", nil,
			Classification{Category: models.CategoryShelter, Confidence: 0.5}},
		{"unknown category", `{"category":"midlayer","confidence":0.9}`, nil, classifyFallback},
		{"garbage", `not json`, nil, classifyFallback},
		{"model error", "", errors.New("down"), classifyFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{resp: &llm.Response{Content: tt.content}, err: tt.err}
			got := New(model, 0, 0).Classify(context.Background(), "wool hat")
			assert.Equal(t, tt.want, got)
			if tt.err == nil {
				assert.True(t, model.last.JSON)
			}
		})
	}
}
