package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.LogLevel == "" {
		c.LogLevel = "info" // Default log level
	}

	scraperWarnings, err := c.Scraper.Validate()
	warnings = append(warnings, scraperWarnings...)
	if err != nil {
		return warnings, err
	}

	// Storage
	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = BackendBadger
	case BackendBadger, BackendPostgres: // Valid
	default:
		return warnings, fmt.Errorf("%w: unknown storage backend %q", utils.ErrConfigValidation, c.Storage.Backend)
	}
	if c.Storage.Backend == BackendBadger && c.Storage.StateDir == "" {
		warnings = append(warnings, "storage.state_dir is empty, defaulting to './scraper_state'")
		c.Storage.StateDir = "./scraper_state"
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.PostgresDSN == "" {
		return warnings, fmt.Errorf("%w: postgres backend needs storage.postgres_dsn or DATABASE_URL", utils.ErrConfigValidation)
	}
	if c.Storage.GCInterval <= 0 {
		c.Storage.GCInterval = 10 * time.Minute // Badger only; ignored by postgres
	}

	// Jobs
	switch c.Jobs.Dispatch {
	case "":
		c.Jobs.Dispatch = DispatchInline
	case DispatchInline, DispatchRedis: // Valid
	default:
		return warnings, fmt.Errorf("%w: unknown jobs.dispatch %q", utils.ErrConfigValidation, c.Jobs.Dispatch)
	}
	if c.Jobs.MaxConcurrent <= 0 {
		c.Jobs.MaxConcurrent = 2 // Keep the target site's load low
	}

	// Queue (only matters for redis dispatch, defaults applied regardless)
	if c.Queue.RedisAddr == "" {
		if c.Jobs.Dispatch == DispatchRedis {
			warnings = append(warnings, "queue.redis_addr is empty, defaulting to 'localhost:6379'")
		}
		c.Queue.RedisAddr = "localhost:6379"
	}
	if c.Queue.Key == "" {
		c.Queue.Key = "listing-scraper:jobs"
	}
	if c.Queue.PollTimeout <= 0 {
		c.Queue.PollTimeout = 5 * time.Second // BRPOP block time per poll
	}

	// Server
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000" // Same port as the Flask app
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second // Large CSV exports need room
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// Validate checks ScraperConfig fields and applies defaults.
func (s *ScraperConfig) Validate() (warnings []string, err error) {
	if s.BaseURL == "" {
		s.BaseURL = "https://www.ebay.com"
	}
	u, parseErr := url.Parse(s.BaseURL)
	if parseErr != nil || u.Scheme == "" || u.Host == "" {
		return warnings, fmt.Errorf("%w: scraper.base_url %q is not an absolute URL", utils.ErrConfigValidation, s.BaseURL)
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/") // ResolveURL appends paths starting with "/"

	if s.SearchPath == "" {
		s.SearchPath = "/sch/i.html"
	} else if !strings.HasPrefix(s.SearchPath, "/") {
		s.SearchPath = "/" + s.SearchPath // Normalise "sch/i.html"
	}

	if s.MinDelay < 0 || s.MaxDelay < 0 {
		return warnings, fmt.Errorf("%w: scraper delays cannot be negative", utils.ErrConfigValidation)
	}
	if s.MinDelay == 0 && s.MaxDelay == 0 { // Unset: 2-4s politeness window
		s.MinDelay = 2 * time.Second
		s.MaxDelay = 4 * time.Second
	}
	if s.MaxDelay < s.MinDelay {
		warnings = append(warnings, fmt.Sprintf(
			"scraper.max_delay (%v) < min_delay (%v), using min_delay for both",
			s.MaxDelay, s.MinDelay))
		s.MaxDelay = s.MinDelay
	}

	if s.PageSize <= 0 {
		s.PageSize = 60 // _ipg value
	}
	if s.ElementCap <= 0 {
		s.ElementCap = 20 // Listings scanned per page
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = 30 * time.Second // Per page fetch
	}

	switch s.FetchMode {
	case "":
		s.FetchMode = FetchModeHTTP
	case FetchModeHTTP, FetchModeBrowser: // Valid
	default:
		return warnings, fmt.Errorf("%w: unknown scraper.fetch_mode %q", utils.ErrConfigValidation, s.FetchMode)
	}

	if len(s.Selectors.Containers) > 0 && s.Selectors.ContainerFallback == "" {
		warnings = append(warnings, "scraper.selectors.containers overridden without container_fallback, default fallback kept")
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second // Above FetchTimeout so the ctx deadline fires first
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2 // Jobs hit one host sequentially
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second // Go's default
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second // Go's default
	}
}
