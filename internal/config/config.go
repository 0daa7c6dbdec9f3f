package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. GEARBOX_PORT.
const Prefix = "GEARBOX"

// Config holds all configuration for the Gearbox server.
type Config struct {
	Port      int    `envconfig:"PORT" default:"8080"`
	Version   string `envconfig:"VERSION" default:"0.1.0"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	Store     StoreConfig
	LLM       LLMConfig
	Weather   WeatherConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
}

type StoreConfig struct {
	// memory | sqlite | postgres
	Driver      string `envconfig:"DRIVER" default:"memory"`
	DataDir     string `envconfig:"DATA_DIR"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/gearbox.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

type LLMConfig struct {
	// Providers is the fallback order, e.g. "openai,gemini".
	Providers     []string `envconfig:"PROVIDERS" default:"openai,gemini"`
	OpenAIKey     string   `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string   `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string   `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	GeminiKey     string   `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string   `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	Temperature   float32  `envconfig:"TEMPERATURE" default:"0.7"`
	MaxTokens     int      `envconfig:"MAX_TOKENS" default:"1000"`
}

type WeatherConfig struct {
	APIKey   string        `envconfig:"API_KEY"`
	BaseURL  string        `envconfig:"BASE_URL" default:"https://api.openweathermap.org"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"10m"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

type TelemetryConfig struct {
	Enabled      bool   `envconfig:"ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"gearbox"`
}

type AuthConfig struct {
	// Empty disables API-key authentication.
	APIKeys []string `envconfig:"API_KEYS"`
}

// Load reads configuration from GEARBOX_* environment variables. The
// provider-native variables (OPENAI_API_KEY, GEMINI_API_KEY,
// OPENWEATHER_API_KEY) are honoured when the prefixed ones are unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	fallback(&cfg.LLM.OpenAIKey, "OPENAI_API_KEY")
	fallback(&cfg.LLM.GeminiKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	fallback(&cfg.Weather.APIKey, "OPENWEATHER_API_KEY", "WEATHER_API_KEY")

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case "memory", "sqlite":
	case "postgres", "postgresql":
		if cfg.Store.DatabaseURL == "" {
			return nil, fmt.Errorf("%s_STORE_DATABASE_URL is required for the postgres driver", Prefix)
		}
	default:
		return nil, fmt.Errorf("unsupported %s_STORE_DRIVER: %s", Prefix, cfg.Store.Driver)
	}
	return &cfg, nil
}

func fallback(dst *string, keys ...string) {
	if *dst != "" {
		return
	}
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}
