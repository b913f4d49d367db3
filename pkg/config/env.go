package config

import (
	"strconv"
	"time"
)

// ApplyEnvOverrides lets deployment environments override file settings.
// getenv is usually os.Getenv; tests pass a map lookup.
func (c *AppConfig) ApplyEnvOverrides(getenv func(string) string) {
	setString(&c.LogLevel, getenv("LOG_LEVEL"))
	setString(&c.Scraper.BaseURL, getenv("LISTING_SCRAPER_BASE_URL"))
	setString(&c.Scraper.FetchMode, getenv("LISTING_SCRAPER_FETCH_MODE"))
	setString(&c.Storage.Backend, getenv("LISTING_SCRAPER_STORAGE_BACKEND"))
	setString(&c.Storage.StateDir, getenv("LISTING_SCRAPER_STATE_DIR"))
	setString(&c.Storage.PostgresDSN, getenv("DATABASE_URL"))
	setString(&c.Jobs.Dispatch, getenv("LISTING_SCRAPER_DISPATCH"))
	setString(&c.Queue.RedisAddr, getenv("REDIS_ADDR"))
	setString(&c.Queue.RedisPassword, getenv("REDIS_PASSWORD"))
	setString(&c.Server.Addr, getenv("LISTING_SCRAPER_ADDR"))

	if v, err := strconv.Atoi(getenv("REDIS_DB")); err == nil {
		c.Queue.RedisDB = v
	}
	if d, err := time.ParseDuration(getenv("LISTING_SCRAPER_MIN_DELAY")); err == nil {
		c.Scraper.MinDelay = d
	}
	if d, err := time.ParseDuration(getenv("LISTING_SCRAPER_MAX_DELAY")); err == nil {
		c.Scraper.MaxDelay = d
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
