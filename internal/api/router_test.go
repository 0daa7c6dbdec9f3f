package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-app/gearbox/internal/api"
	"github.com/gearbox-app/gearbox/internal/api/handlers"
	"github.com/gearbox-app/gearbox/internal/chat"
	"github.com/gearbox-app/gearbox/internal/config"
	"github.com/gearbox-app/gearbox/internal/executor"
	"github.com/gearbox-app/gearbox/internal/interpreter"
	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/internal/store"
	"github.com/gearbox-app/gearbox/pkg/models"
)

type stubModel struct {
	resp *llm.Response
}

func (s *stubModel) Complete(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	return s.resp, nil
}

type stubWeather struct {
	lastDates string
}

func (s *stubWeather) Forecast(_ context.Context, location, dates string) models.WeatherData {
	s.lastDates = dates
	return models.WeatherData{
		Location: location,
		Current:  models.CurrentWeather{Temperature: 7, Condition: "Rain"},
		Forecast: []models.ForecastPeriod{},
	}
}

type env struct {
	handler http.Handler
	store   store.Store
	weather *stubWeather
}

func newEnv(t *testing.T, model *stubModel, apiKeys ...string) *env {
	t.Helper()
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })

	if model == nil {
		model = &stubModel{resp: &llm.Response{Content: "Happy to help with your gear questions."}}
	}
	interp := interpreter.New(model, 0.7, 1000)
	wx := &stubWeather{}
	h := handlers.New(s, chat.New(s, interp, executor.New(s)), wx, interp)

	cfg := &config.Config{Version: "test"}
	cfg.Auth.APIKeys = apiKeys
	return &env{handler: api.NewRouter(cfg, h), store: s, weather: wx}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])

	w = e.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, "test", decode[map[string]string](t, w)["version"])
}

func TestGearLifecycle(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/gear", map[string]any{
		"brand": "Salomon", "model": "X Ultra 4", "category": "footwear", "cost": 150,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.GearItem](t, w)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "active", created.Status)

	w = e.do(t, http.MethodGet, "/api/gear/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPatch, "/api/gear/"+created.ID, map[string]any{"size": "44"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "44", decode[models.GearItem](t, w).Size)

	w = e.do(t, http.MethodPost, "/api/gear/"+created.ID+"/performance", map[string]any{
		"gearId": "ignored", "rating": 8, "activityType": "hiking",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, created.ID, decode[models.GearPerformance](t, w).GearID)

	w = e.do(t, http.MethodGet, "/api/gear/"+created.ID+"/performance", nil)
	assert.Len(t, decode[[]models.GearPerformance](t, w), 1)

	w = e.do(t, http.MethodGet, "/api/gear?category=shell", nil)
	assert.Equal(t, "[]\n", w.Body.String())

	w = e.do(t, http.MethodDelete, "/api/gear/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deleted", decode[map[string]string](t, w)["status"])

	w = e.do(t, http.MethodGet, "/api/gear/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "gear item not found", decode[map[string]string](t, w)["error"])

	w = e.do(t, http.MethodDelete, "/api/gear/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGearValidation(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/gear", map[string]any{"brand": "X", "model": "Y", "category": "midlayer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, w)["error"], "Failed to create gear item"))

	req := httptest.NewRequest(http.MethodPost, "/api/gear", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = e.do(t, http.MethodPost, "/api/gear/anything/performance", map[string]any{"rating": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTripsAttachWeather(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/trips", map[string]any{
		"name": "Skye traverse", "location": "Isle of Skye",
		"startDate": "2025-06-01", "endDate": "2025-06-04",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trip := decode[models.Trip](t, w)
	require.NotNil(t, trip.WeatherData)
	assert.Equal(t, "Isle of Skye", trip.WeatherData.Location)
	assert.Equal(t, "2025-06-01/2025-06-04", e.weather.lastDates)

	w = e.do(t, http.MethodPatch, "/api/trips/"+trip.ID, map[string]any{"notes": "bring midge net"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bring midge net", decode[models.Trip](t, w).Notes)

	w = e.do(t, http.MethodGet, "/api/trips", nil)
	assert.Len(t, decode[[]models.Trip](t, w), 1)

	w = e.do(t, http.MethodPost, "/api/trips", map[string]any{"location": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/trips/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWeatherRoute(t *testing.T) {
	e := newEnv(t, nil)
	w := e.do(t, http.MethodGet, "/api/weather/Chamonix?dates=2025-01-10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chamonix", decode[models.WeatherData](t, w).Location)
	assert.Equal(t, "2025-01-10", e.weather.lastDates)
}

func TestChatRoutes(t *testing.T) {
	model := &stubModel{resp: &llm.Response{
		Calls: []llm.FunctionCall{{Name: interpreter.FnAddGearItem, Arguments: map[string]any{
			"brand": "Patagonia", "model": "Houdini", "category": "shell",
		}}},
	}}
	e := newEnv(t, model)

	w := e.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "I got a Patagonia Houdini"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decode[map[string]any](t, w)
	assert.Equal(t, "Added Patagonia Houdini to your gear inventory.", reply["response"])
	assert.Len(t, reply["functions"], 1)

	w = e.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "show my gear"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]any](t, w)["response"], "Your collection covers 1 categories.")

	w = e.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/chat/history?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-cache")
	hist := decode[[]models.ChatMessage](t, w)
	require.Len(t, hist, 1)
	assert.Equal(t, "show my gear", hist[0].Message)

	w = e.do(t, http.MethodGet, "/api/chat/history?limit=abc", nil)
	assert.Len(t, decode[[]models.ChatMessage](t, w), 2)
}

func TestAnalyticsRoutes(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	item := &models.GearItem{Brand: "Smartwool", Model: "Merino 150", Category: models.CategoryBaseLayer}
	require.NoError(t, e.store.CreateGearItem(ctx, item))
	require.NoError(t, e.store.CreateGearPerformance(ctx, &models.GearPerformance{GearID: item.ID, Rating: 9}))
	require.NoError(t, e.store.CreateGearPerformance(ctx, &models.GearPerformance{GearID: item.ID, Rating: 8}))
	require.NoError(t, e.store.CreateGearPerformance(ctx, &models.GearPerformance{GearID: "gone", Rating: 1}))

	w := e.do(t, http.MethodGet, "/api/analytics/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.GearStats](t, w)
	assert.Equal(t, 1, stats.TotalItems)
	assert.Equal(t, 8.5, stats.AverageRating)
	assert.Equal(t, map[string]int{"base_layer": 1}, stats.CategoryBreakdown)

	w = e.do(t, http.MethodGet, "/api/analytics/gaps?activities=hiking,%20climbing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	gaps := decode[[]models.GearGap](t, w)
	cats := make([]string, len(gaps))
	for i, g := range gaps {
		cats[i] = g.Category
	}
	assert.Contains(t, cats, "safety")
	assert.Contains(t, cats, "hydration")

	w = e.do(t, http.MethodGet, "/api/analytics/score", nil)
	require.Equal(t, http.StatusOK, w.Code)
	score := decode[models.GearScore](t, w)
	assert.GreaterOrEqual(t, score.Overall, 0)
	assert.LessOrEqual(t, score.Overall, 100)

	w = e.do(t, http.MethodPost, "/api/analytics/layering", map[string]any{
		"activity": "ski touring", "conditions": map[string]any{"temperature": -5, "weather": "snow"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[models.LayeringRecommendation](t, w)
	assert.Contains(t, rec.Layers.Base, "Smartwool Merino 150 (owned)")

	w = e.do(t, http.MethodPost, "/api/analytics/layering", map[string]any{"conditions": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassifyRoute(t *testing.T) {
	e := newEnv(t, &stubModel{resp: &llm.Response{Content: `{"category":"headwear","subcategory":"beanie","confidence":0.9}`}})

	w := e.do(t, http.MethodPost, "/api/gear/classify", map[string]any{"description": "merino beanie"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[interpreter.Classification](t, w)
	assert.Equal(t, models.CategoryHeadwear, got.Category)

	w = e.do(t, http.MethodPost, "/api/gear/classify", map[string]any{"description": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIKeyEnforced(t *testing.T) {
	e := newEnv(t, nil, "secret")

	w := e.do(t, http.MethodGet, "/api/gear", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/gear", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
