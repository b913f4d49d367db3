package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches, caches and evaluates robots.txt per host.
// Any failure to obtain the file is treated as "allowed".
type RobotsChecker struct {
	client    *http.Client // Usually the same client the fetcher uses
	userAgent string       // Default agent for lookups and the robots request
	cache     map[string]*robotstxt.RobotsData // host -> parsed data (nil = unavailable)
	cacheMu   sync.Mutex                       // Protects cache
	log       *logrus.Entry
}

// NewRobotsChecker creates a RobotsChecker that fetches robots.txt with client
func NewRobotsChecker(client *http.Client, userAgent string, log *logrus.Entry) *RobotsChecker {
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// Allowed reports whether agent may fetch rawURL. An empty agent uses the checker's default.
func (rc *RobotsChecker) Allowed(ctx context.Context, rawURL, agent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true // Let the fetch itself report the bad URL
	}
	if agent == "" {
		agent = rc.userAgent
	}
	data := rc.data(ctx, u)
	if data == nil {
		return true // Fail open
	}
	return data.TestAgent(u.RequestURI(), agent)
}

// data returns cached robots data for u's host, fetching it on first use
func (rc *RobotsChecker) data(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := u.Host

	rc.cacheMu.Lock()
	data, found := rc.cache[host]
	rc.cacheMu.Unlock()
	if found {
		return data // Cached, including cached failures
	}

	scheme := u.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https" // Default scheme
	}
	robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()
	robotsLog := rc.log.WithField("robots_url", robotsURL)
	robotsLog.Debug("Fetching robots.txt...")

	data = rc.fetch(ctx, robotsURL, robotsLog)

	// Two concurrent misses may both fetch; the last write wins and both results are equivalent
	rc.cacheMu.Lock()
	rc.cache[host] = data
	rc.cacheMu.Unlock()
	return data
}

// fetch downloads and parses robots.txt, returning nil on any failure
func (rc *RobotsChecker) fetch(ctx context.Context, robotsURL string, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return nil
	}
	if rc.userAgent != "" {
		req.Header.Set("User-Agent", rc.userAgent)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB cap
	if err != nil {
		robotsLog.Warnf("Error reading body: %v", err)
		return nil
	}

	// FromStatusAndBytes maps 4xx to allow-all and 5xx to disallow-all
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		robotsLog.Warnf("Error parsing content: %v", err)
		return nil
	}
	robotsLog.Debug("Parsed robots.txt")
	return data
}
