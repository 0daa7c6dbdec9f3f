package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, []string{"openai", "gemini"}, cfg.LLM.Providers)
	assert.Equal(t, 10*time.Minute, cfg.Weather.CacheTTL)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Empty(t, cfg.Auth.APIKeys)
}

func TestLoad_PrefixedOverrides(t *testing.T) {
	t.Setenv("GEARBOX_PORT", "9191")
	t.Setenv("GEARBOX_STORE_DRIVER", "SQLite")
	t.Setenv("GEARBOX_STORE_SQLITE_PATH", "/tmp/g.db")
	t.Setenv("GEARBOX_LLM_PROVIDERS", "gemini")
	t.Setenv("GEARBOX_WEATHER_CACHE_TTL", "30s")
	t.Setenv("GEARBOX_AUTH_API_KEYS", "k1,k2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/g.db", cfg.Store.SQLitePath)
	assert.Equal(t, []string{"gemini"}, cfg.LLM.Providers)
	assert.Equal(t, 30*time.Second, cfg.Weather.CacheTTL)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
}

func TestLoad_ProviderNativeKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-native")
	t.Setenv("OPENWEATHER_API_KEY", "ow-native")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-native", cfg.LLM.OpenAIKey)
	assert.Equal(t, "ow-native", cfg.Weather.APIKey)

	t.Setenv("GEARBOX_LLM_OPENAI_API_KEY", "sk-prefixed")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", cfg.LLM.OpenAIKey)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("GEARBOX_STORE_DRIVER", "mongo")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("GEARBOX_STORE_DRIVER", "postgres")
	t.Setenv("GEARBOX_STORE_DATABASE_URL", "")
	_, err = Load()
	assert.Error(t, err)
}
