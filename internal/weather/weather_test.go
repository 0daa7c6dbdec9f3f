package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-app/gearbox/internal/config"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, baseURL, apiKey string) *Client {
	t.Helper()
	c := New(config.WeatherConfig{
		APIKey:   apiKey,
		BaseURL:  baseURL,
		CacheTTL: time.Minute,
		Timeout:  2 * time.Second,
	})
	c.now = func() time.Time { return fixedNow }
	return c
}

func owServer(t *testing.T, calls *int32, forecastStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"name":    "Chamonix-Mont-Blanc",
			"main":    map[string]any{"temp": 3.5, "humidity": 80},
			"weather": []map[string]any{{"description": "light snow"}},
			"wind":    map[string]any{"speed": 4.2},
		})
	})
	mux.HandleFunc("/data/2.5/forecast", func(w http.ResponseWriter, r *http.Request) {
		if forecastStatus != http.StatusOK {
			w.WriteHeader(forecastStatus)
			return
		}
		list := make([]map[string]any, 0, 7)
		for i := 0; i < 7; i++ {
			day := fixedNow.Add(time.Duration(i) * 24 * time.Hour)
			list = append(list, map[string]any{
				"dt":      day.Unix(),
				"main":    map[string]any{"temp_max": 5.6, "temp_min": -2.5},
				"weather": []map[string]any{{"description": "snow"}},
				"rain":    map[string]any{"3h": 1.5},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"list": list})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestForecast_Live(t *testing.T) {
	var calls int32
	srv := owServer(t, &calls, http.StatusOK)
	c := newTestClient(t, srv.URL, "secret")

	wx := c.Forecast(context.Background(), "Chamonix", "")
	assert.Equal(t, "Chamonix-Mont-Blanc", wx.Location)
	assert.Equal(t, 4.0, wx.Current.Temperature)
	assert.Equal(t, "light snow", wx.Current.Condition)
	require.Len(t, wx.Forecast, 5)
	assert.Equal(t, "2025-06-01", wx.Forecast[0].Date)
	assert.Equal(t, 6.0, wx.Forecast[0].High)
	assert.Equal(t, -2.0, wx.Forecast[0].Low)
	assert.Equal(t, 1.5, wx.Forecast[0].Precipitation)
}

func TestForecast_CachesByNormalizedLocation(t *testing.T) {
	var calls int32
	srv := owServer(t, &calls, http.StatusOK)
	c := newTestClient(t, srv.URL, "secret")

	c.Forecast(context.Background(), "Chamonix", "")
	c.Forecast(context.Background(), "  chamonix ", "")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestForecast_DateWindow(t *testing.T) {
	var calls int32
	srv := owServer(t, &calls, http.StatusOK)
	c := newTestClient(t, srv.URL, "secret")

	wx := c.Forecast(context.Background(), "Chamonix", "2025-06-02/2025-06-03")
	require.Len(t, wx.Forecast, 2)
	assert.Equal(t, "2025-06-02", wx.Forecast[0].Date)

	// A window with no overlap keeps the full forecast.
	wx = c.Forecast(context.Background(), "Chamonix", "2030-01-01")
	assert.Len(t, wx.Forecast, 5)

	// Cached payload is not narrowed by earlier filters.
	wx = c.Forecast(context.Background(), "Chamonix", "")
	assert.Len(t, wx.Forecast, 5)
}

func TestForecast_FailedForecastIsEmpty(t *testing.T) {
	var calls int32
	srv := owServer(t, &calls, http.StatusInternalServerError)
	c := newTestClient(t, srv.URL, "secret")

	wx := c.Forecast(context.Background(), "Chamonix", "")
	assert.Equal(t, "light snow", wx.Current.Condition)
	assert.Empty(t, wx.Forecast)
}

func TestForecast_FallbackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, "secret")
	wx := c.Forecast(context.Background(), "Nowhere", "")
	assert.Equal(t, Fallback("Nowhere", fixedNow), wx)
}

func TestForecast_FallbackOnErrorStatusNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, "secret")

	first := c.Forecast(context.Background(), "Oslo", "")
	second := c.Forecast(context.Background(), "Oslo", "")
	assert.Equal(t, "partly cloudy", first.Current.Condition)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestForecast_NoAPIKey(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", "")
	wx := c.Forecast(context.Background(), "Bergen", "")
	assert.Equal(t, "Bergen", wx.Location)
	assert.Equal(t, 15.0, wx.Current.Temperature)
	require.Len(t, wx.Forecast, 2)
	assert.Equal(t, "2025-06-01", wx.Forecast[0].Date)
	assert.Equal(t, "2025-06-02", wx.Forecast[1].Date)
	assert.Equal(t, 0.2, wx.Forecast[1].Precipitation)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in       string
		from, to string
		ok       bool
	}{
		{"", "", "", false},
		{"2025-06-02", "2025-06-02", "2025-06-02", true},
		{"2025-06-05/2025-06-02", "2025-06-02", "2025-06-05", true},
		{"next week", "", "", false},
		{"2025-06-02/soon", "", "", false},
	}
	for _, tt := range tests {
		from, to, ok := parseWindow(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.from, from, tt.in)
		assert.Equal(t, tt.to, to, tt.in)
	}
}
