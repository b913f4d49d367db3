package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// maxBodyBytes caps how much of a results page is read into memory
const maxBodyBytes = 16 << 20 // 16MB; results pages are well under this

// PageFetcher retrieves the raw HTML of one search-results page.
// Any returned error is page-level: the caller skips the page and moves on.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// HTTPFetcher fetches pages with a plain HTTP GET. There is no retry: a
// failed page is reported once and skipped by the caller.
type HTTPFetcher struct {
	client  *http.Client      // Shared client with cookie jar
	headers map[string]string // Sent on every request
	timeout time.Duration     // Per-fetch bound; <= 0 relies on the client timeout
	robots  *RobotsChecker    // Optional
	log     *logrus.Entry     // Component logger
}

// NewHTTPFetcher creates an HTTPFetcher
func NewHTTPFetcher(client *http.Client, headers map[string]string, timeout time.Duration, log *logrus.Entry) *HTTPFetcher {
	return &HTTPFetcher{
		client:  client,
		headers: headers,
		timeout: timeout,
		log:     log,
	}
}

// WithRobots makes the fetcher refuse URLs disallowed by the host's robots.txt
func (f *HTTPFetcher) WithRobots(rc *RobotsChecker) *HTTPFetcher {
	f.robots = rc
	return f
}

// Fetch GETs rawURL with params merged into its query and returns the body.
// Non-2xx responses map to ErrClientHTTPError, ErrServerHTTPError or ErrOtherHTTPError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, err
	}
	reqLog := f.log.WithField("url", target)

	// --- Robots.txt gate ---
	if f.robots != nil {
		if !f.robots.Allowed(ctx, target, f.headers["User-Agent"]) {
			return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, target)
		}
	}

	// Per-fetch timeout layered on the caller's ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v) // Configured headers replace Go's defaults
	}

	// --- Execute request ---
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			reqLog.Warnf("Fetch timed out after %v", time.Since(start).Round(time.Millisecond))
		} else {
			reqLog.Errorf("Network error: %v", err)
		}
		return nil, err // Not wrapped: the driver treats it as fatal only if it is not a fetch error
	}
	defer resp.Body.Close() // Ensure body is closed

	resLog := reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "duration": time.Since(start).Round(time.Millisecond)})
	if err := statusError(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes)) // Drain so the connection can be reused
		resLog.Warn("Non-success status")
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	resLog.Debugf("Fetched %d bytes", len(body))
	return body, nil
}

// statusError classifies a response status, returning nil for 2xx
func statusError(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil // Success
	case code >= 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, code, http.StatusText(code))
	case code >= 400: // 403 from bot protection lands here
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, http.StatusText(code))
	default: // 1xx and 3xx the client did not follow
		return fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, code, http.StatusText(code))
	}
}

// withParams merges params into rawURL's existing query
func withParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range params {
		q.Del(k) // params replace any value already in rawURL
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
