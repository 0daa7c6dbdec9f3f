// Package weather looks up current conditions and a short forecast for a
// free-text location. Lookups never fail: any provider problem yields a
// static fallback payload so trip planning keeps working offline.
package weather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/internal/config"
	"github.com/gearbox-app/gearbox/pkg/models"
)

const (
	cacheSize     = 256
	forecastLimit = 5
)

// Provider is what the rest of the server needs from weather lookups.
type Provider interface {
	Forecast(ctx context.Context, location, dates string) models.WeatherData
}

// Client queries the OpenWeather 2.5 API.
type Client struct {
	http   *resty.Client
	apiKey string
	cache  *expirable.LRU[string, models.WeatherData]
	now    func() time.Time
}

// New builds a Client from config. Without an API key every lookup
// returns the fallback.
func New(cfg config.WeatherConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{
		http:   c,
		apiKey: cfg.APIKey,
		cache:  expirable.NewLRU[string, models.WeatherData](cacheSize, nil, ttl),
		now:    time.Now,
	}
}

// Forecast returns weather for location. dates optionally narrows the
// forecast to "YYYY-MM-DD" or "YYYY-MM-DD/YYYY-MM-DD".
func (c *Client) Forecast(ctx context.Context, location, dates string) models.WeatherData {
	key := strings.ToLower(strings.TrimSpace(location))
	if wx, ok := c.cache.Get(key); ok {
		return filterDates(wx, dates)
	}

	if c.apiKey == "" {
		log.Debug().Str("location", location).Msg("No weather API key configured, using fallback")
		return Fallback(location, c.now())
	}

	wx, err := c.fetch(ctx, location)
	if err != nil {
		log.Warn().Err(err).Str("location", location).Msg("Weather lookup failed, using fallback")
		return Fallback(location, c.now())
	}
	c.cache.Add(key, wx)
	return filterDates(wx, dates)
}

// ── OpenWeather wire types ───────────────────────────────────

type owCondition struct {
	Description string `json:"description"`
}

type owCurrent struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []owCondition `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type owForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMax float64 `json:"temp_max"`
			TempMin float64 `json:"temp_min"`
		} `json:"main"`
		Weather []owCondition `json:"weather"`
		Rain    struct {
			ThreeHour float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

func (c *Client) fetch(ctx context.Context, location string) (models.WeatherData, error) {
	var cur owCurrent
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.params(location)).
		SetResult(&cur).
		Get("/data/2.5/weather")
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("current weather request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return models.WeatherData{}, fmt.Errorf("current weather status %d", resp.StatusCode())
	}
	if len(cur.Weather) == 0 {
		return models.WeatherData{}, fmt.Errorf("current weather response has no conditions")
	}

	wx := models.WeatherData{
		Location: cur.Name,
		Current: models.CurrentWeather{
			Temperature: round(cur.Main.Temp),
			Condition:   cur.Weather[0].Description,
			Humidity:    cur.Main.Humidity,
			WindSpeed:   cur.Wind.Speed,
		},
		Forecast: []models.ForecastPeriod{},
	}
	if wx.Location == "" {
		wx.Location = location
	}

	// A failed forecast degrades to an empty list, not the fallback.
	var fc owForecast
	resp, err = c.http.R().
		SetContext(ctx).
		SetQueryParams(c.params(location)).
		SetResult(&fc).
		Get("/data/2.5/forecast")
	if err != nil || resp.StatusCode() != http.StatusOK {
		log.Warn().Err(err).Str("location", location).Msg("Forecast lookup failed")
		return wx, nil
	}
	for i, item := range fc.List {
		if i == forecastLimit {
			break
		}
		period := models.ForecastPeriod{
			Date:          time.Unix(item.Dt, 0).UTC().Format(models.DateLayout),
			High:          round(item.Main.TempMax),
			Low:           round(item.Main.TempMin),
			Precipitation: item.Rain.ThreeHour,
		}
		if len(item.Weather) > 0 {
			period.Condition = item.Weather[0].Description
		}
		wx.Forecast = append(wx.Forecast, period)
	}
	return wx, nil
}

func (c *Client) params(location string) map[string]string {
	return map[string]string{
		"q":     location,
		"appid": c.apiKey,
		"units": "metric",
	}
}

// Fallback is the static payload served when the provider is unavailable.
func Fallback(location string, now time.Time) models.WeatherData {
	today := now.UTC()
	return models.WeatherData{
		Location: location,
		Current: models.CurrentWeather{
			Temperature: 15,
			Condition:   "partly cloudy",
			Humidity:    65,
			WindSpeed:   10,
		},
		Forecast: []models.ForecastPeriod{
			{Date: today.Format(models.DateLayout), High: 18, Low: 8, Condition: "sunny", Precipitation: 0},
			{Date: today.Add(24 * time.Hour).Format(models.DateLayout), High: 16, Low: 6, Condition: "cloudy", Precipitation: 0.2},
		},
	}
}

// filterDates drops forecast entries outside the requested window unless
// that would leave nothing.
func filterDates(wx models.WeatherData, dates string) models.WeatherData {
	from, to, ok := parseWindow(dates)
	if !ok || len(wx.Forecast) == 0 {
		return wx
	}
	kept := make([]models.ForecastPeriod, 0, len(wx.Forecast))
	for _, p := range wx.Forecast {
		if p.Date >= from && p.Date <= to {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return wx
	}
	wx.Forecast = kept
	return wx
}

func parseWindow(dates string) (string, string, bool) {
	dates = strings.TrimSpace(dates)
	if dates == "" {
		return "", "", false
	}
	from, to, found := strings.Cut(dates, "/")
	if !found {
		to = from
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if _, err := time.Parse(models.DateLayout, from); err != nil {
		return "", "", false
	}
	if _, err := time.Parse(models.DateLayout, to); err != nil {
		return "", "", false
	}
	if to < from {
		from, to = to, from
	}
	return from, to, true
}

// round rounds half up, so -2.5 becomes -2.
func round(v float64) float64 {
	return math.Floor(v + 0.5)
}
