package config

import "time"

// AppConfig holds the global application configuration
type AppConfig struct {
	LogLevel           string           `yaml:"log_level,omitempty"`
	Scraper            ScraperConfig    `yaml:"scraper"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Storage            StorageConfig    `yaml:"storage"`
	Jobs               JobsConfig       `yaml:"jobs,omitempty"`
	Queue              QueueConfig      `yaml:"queue,omitempty"`
	Server             ServerConfig     `yaml:"server,omitempty"`
}

// ScraperConfig is everything the job driver needs to talk to one commerce site.
// It is passed into the driver explicitly; nothing here is process-global.
type ScraperConfig struct {
	BaseURL       string            `yaml:"base_url"`
	SearchPath    string            `yaml:"search_path,omitempty"`
	UserAgent     string            `yaml:"user_agent,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"` // Sent with every page request
	MinDelay      time.Duration     `yaml:"min_delay,omitempty"`
	MaxDelay      time.Duration     `yaml:"max_delay,omitempty"`
	PageSize      int               `yaml:"page_size,omitempty"`   // Items per page requested from the site
	ElementCap    int               `yaml:"element_cap,omitempty"` // Listing elements scanned per page
	FetchTimeout  time.Duration     `yaml:"fetch_timeout,omitempty"`
	FetchMode     string            `yaml:"fetch_mode,omitempty"` // "http" or "browser"
	Headless      *bool             `yaml:"headless,omitempty"`   // Browser mode only (nil = true)
	RespectRobots bool              `yaml:"respect_robots,omitempty"`
	DebugDumpDir  string            `yaml:"debug_dump_dir,omitempty"` // Page-1 HTML is written here when set
	Selectors     SelectorConfig    `yaml:"selectors,omitempty"`
}

// SelectorConfig overrides the built-in selector chains. An empty list keeps the default chain.
type SelectorConfig struct {
	Containers         []string `yaml:"containers,omitempty"`
	ContainerFallback  string   `yaml:"container_fallback,omitempty"`
	Title              []string `yaml:"title,omitempty"`
	TitleNoisePrefixes []string `yaml:"title_noise_prefixes,omitempty"`
	Price              []string `yaml:"price,omitempty"`
	OriginalPrice      []string `yaml:"original_price,omitempty"`
	Rating             []string `yaml:"rating,omitempty"`
	ReviewCount        []string `yaml:"review_count,omitempty"`
	SellerName         []string `yaml:"seller_name,omitempty"`
	ShippingInfo       []string `yaml:"shipping_info,omitempty"`
	Discount           []string `yaml:"discount,omitempty"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend     string        `yaml:"backend,omitempty"` // "badger" or "postgres"
	StateDir    string        `yaml:"state_dir,omitempty"`
	PostgresDSN string        `yaml:"postgres_dsn,omitempty"`
	GCInterval  time.Duration `yaml:"gc_interval,omitempty"`
}

// JobsConfig controls how submitted jobs are dispatched
type JobsConfig struct {
	Dispatch      string `yaml:"dispatch,omitempty"`       // "inline" or "redis"
	MaxConcurrent int    `yaml:"max_concurrent,omitempty"` // Inline runs allowed at once
}

// QueueConfig holds Redis connection settings for the "redis" dispatch mode
type QueueConfig struct {
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
	Key           string        `yaml:"key,omitempty"`
	PollTimeout   time.Duration `yaml:"poll_timeout,omitempty"`
}

// ServerConfig holds settings for the HTTP API
type ServerConfig struct {
	Addr         string        `yaml:"addr,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	IdleTimeout  time.Duration `yaml:"idle_timeout,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"

	BackendBadger   = "badger"
	BackendPostgres = "postgres"

	DispatchInline = "inline"
	DispatchRedis  = "redis"
)

// DefaultHeaders mirrors what a desktop Chrome sends on a top-level navigation
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Cache-Control":             "max-age=0",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"sec-ch-ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"sec-ch-ua-mobile":          "?0",
		"sec-ch-ua-platform":        `"Windows"`,
	}
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// GetEffectiveHeaders merges configured headers over the defaults and sets User-Agent
func GetEffectiveHeaders(sc ScraperConfig) map[string]string {
	headers := DefaultHeaders()
	for k, v := range sc.Headers {
		headers[k] = v
	}
	if sc.UserAgent != "" {
		headers["User-Agent"] = sc.UserAgent
	} else if _, ok := headers["User-Agent"]; !ok {
		headers["User-Agent"] = defaultUserAgent
	}
	return headers
}

// GetEffectiveHeadless reports whether the browser fetcher runs headless
func GetEffectiveHeadless(sc ScraperConfig) bool {
	if sc.Headless != nil {
		return *sc.Headless
	}
	return true
}
