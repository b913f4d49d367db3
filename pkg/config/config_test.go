package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestGetEffectiveHeaders(t *testing.T) {
	t.Run("defaults include browser headers and user agent", func(t *testing.T) {
		h := GetEffectiveHeaders(ScraperConfig{})
		assert.Equal(t, "en-US,en;q=0.9", h["Accept-Language"])
		assert.Equal(t, "navigate", h["Sec-Fetch-Mode"])
		assert.Contains(t, h["User-Agent"], "Chrome/")
	})

	t.Run("configured headers override defaults", func(t *testing.T) {
		h := GetEffectiveHeaders(ScraperConfig{Headers: map[string]string{
			"Accept-Language": "de-DE",
			"X-Custom":        "1",
		}})
		assert.Equal(t, "de-DE", h["Accept-Language"])
		assert.Equal(t, "1", h["X-Custom"])
	})

	t.Run("user_agent field wins over header map", func(t *testing.T) {
		h := GetEffectiveHeaders(ScraperConfig{
			UserAgent: "listing-bot/1.0",
			Headers:   map[string]string{"User-Agent": "other"},
		})
		assert.Equal(t, "listing-bot/1.0", h["User-Agent"])
	})

	t.Run("defaults are not shared between calls", func(t *testing.T) {
		h := GetEffectiveHeaders(ScraperConfig{})
		h["Accept"] = "mutated"
		assert.NotEqual(t, "mutated", GetEffectiveHeaders(ScraperConfig{})["Accept"])
	})
}

func TestGetEffectiveHeadless(t *testing.T) {
	assert.True(t, GetEffectiveHeadless(ScraperConfig{}))
	assert.True(t, GetEffectiveHeadless(ScraperConfig{Headless: boolPtr(true)}))
	assert.False(t, GetEffectiveHeadless(ScraperConfig{Headless: boolPtr(false)}))
}

func TestAppConfig_YAMLDecoding(t *testing.T) {
	raw := `
log_level: debug
scraper:
  base_url: https://www.ebay.co.uk
  min_delay: 1s
  max_delay: 1500ms
  fetch_mode: browser
  headless: false
  selectors:
    title:
      - "h3.custom-title"
storage:
  backend: postgres
  postgres_dsn: postgres://u:p@db/listings
jobs:
  dispatch: redis
queue:
  redis_addr: cache:6379
`
	var cfg AppConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://www.ebay.co.uk", cfg.Scraper.BaseURL)
	assert.Equal(t, time.Second, cfg.Scraper.MinDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scraper.MaxDelay)
	assert.Equal(t, FetchModeBrowser, cfg.Scraper.FetchMode)
	assert.False(t, GetEffectiveHeadless(cfg.Scraper))
	assert.Equal(t, []string{"h3.custom-title"}, cfg.Scraper.Selectors.Title)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, DispatchRedis, cfg.Jobs.Dispatch)
	assert.Equal(t, "cache:6379", cfg.Queue.RedisAddr)
}

func TestAppConfig_ApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"LOG_LEVEL":                       "warn",
		"DATABASE_URL":                    "postgres://env/db",
		"LISTING_SCRAPER_STORAGE_BACKEND": "postgres",
		"REDIS_ADDR":                      "env-redis:6379",
		"REDIS_DB":                        "3",
		"LISTING_SCRAPER_MIN_DELAY":       "100ms",
		"LISTING_SCRAPER_MAX_DELAY":       "not-a-duration",
	}
	cfg := AppConfig{
		LogLevel: "info",
		Scraper:  ScraperConfig{BaseURL: "https://file.example", MaxDelay: 5 * time.Second},
		Server:   ServerConfig{Addr: ":8080"},
	}

	cfg.ApplyEnvOverrides(func(k string) string { return env[k] })

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "postgres://env/db", cfg.Storage.PostgresDSN)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "env-redis:6379", cfg.Queue.RedisAddr)
	assert.Equal(t, 3, cfg.Queue.RedisDB)
	assert.Equal(t, 100*time.Millisecond, cfg.Scraper.MinDelay)
	assert.Equal(t, 5*time.Second, cfg.Scraper.MaxDelay, "unparsable duration ignored")
	assert.Equal(t, "https://file.example", cfg.Scraper.BaseURL, "unset env keeps file value")
	assert.Equal(t, ":8080", cfg.Server.Addr)
}
