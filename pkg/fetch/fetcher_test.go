package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client built the same way production does
func testClient() *http.Client {
	cfg := config.AppConfig{}
	_, _ = cfg.Validate()
	return NewClient(cfg.HTTPClientSettings, testLogger())
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
		_, _ = w.Write([]byte("<html><body>page</body></html>"))
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestHTTPFetcher_Success(t *testing.T) {
	var gotQuery url.Values
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotHeaders = r.Header.Clone()
		_, _ = w.Write([]byte("<html>results</html>"))
	}))
	defer server.Close()

	headers := map[string]string{"User-Agent": "test-agent", "Accept-Language": "en-US"}
	f := NewHTTPFetcher(testClient(), headers, time.Second, testLogger())

	params := url.Values{"_nkw": {"usb hub"}, "_pgn": {"2"}}
	body, err := f.Fetch(context.Background(), server.URL+"/sch/i.html?_sacat=0", params)

	require.NoError(t, err)
	assert.Equal(t, "<html>results</html>", string(body))
	assert.Equal(t, "usb hub", gotQuery.Get("_nkw"))
	assert.Equal(t, "2", gotQuery.Get("_pgn"))
	assert.Equal(t, "0", gotQuery.Get("_sacat"), "existing query preserved")
	assert.Equal(t, "test-agent", gotHeaders.Get("User-Agent"))
	assert.Equal(t, "en-US", gotHeaders.Get("Accept-Language"))
}

func TestHTTPFetcher_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
		category string
	}{
		{"not found", http.StatusNotFound, utils.ErrClientHTTPError, "HTTP_404"},
		{"forbidden", http.StatusForbidden, utils.ErrClientHTTPError, "HTTP_403"},
		{"rate limited", http.StatusTooManyRequests, utils.ErrClientHTTPError, "HTTP_429"},
		{"server error", http.StatusBadGateway, utils.ErrServerHTTPError, "HTTP_5xx"},
		{"not modified", http.StatusNotModified, utils.ErrOtherHTTPError, "HTTP_OtherStatus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, []int{tt.status, http.StatusOK})
			f := NewHTTPFetcher(testClient(), nil, time.Second, testLogger())

			body, err := f.Fetch(context.Background(), server.URL, nil)

			require.Error(t, err)
			assert.Nil(t, body)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.category, utils.CategorizeError(err))
			assert.True(t, utils.IsPageLevel(err))
			assert.Equal(t, int32(1), attempts.Load(), "failed pages are never retried")
		})
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewHTTPFetcher(testClient(), nil, 50*time.Millisecond, testLogger())

	start := time.Now()
	_, err := f.Fetch(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, utils.IsPageLevel(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPFetcher_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close() // nothing listening any more

	f := NewHTTPFetcher(testClient(), nil, time.Second, testLogger())
	_, err := f.Fetch(context.Background(), addr, nil)

	require.Error(t, err)
	assert.True(t, utils.IsPageLevel(err))
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	f := NewHTTPFetcher(testClient(), nil, time.Second, testLogger())
	_, err := f.Fetch(context.Background(), "http://[::1", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestHTTPFetcher_RobotsDisallowed(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /sch/\n"))
			return
		}
		pageHits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := testClient()
	f := NewHTTPFetcher(client, map[string]string{"User-Agent": "listing-bot"}, time.Second, testLogger()).
		WithRobots(NewRobotsChecker(client, "listing-bot", testLogger()))

	_, err := f.Fetch(context.Background(), server.URL+"/sch/i.html", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)

	body, err := f.Fetch(context.Background(), server.URL+"/itm/1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(1), pageHits.Load())
}

func TestRobotsChecker_CachesAndFailsOpen(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	rc := NewRobotsChecker(testClient(), "listing-bot", testLogger())

	assert.True(t, rc.Allowed(context.Background(), server.URL+"/a", ""))
	assert.True(t, rc.Allowed(context.Background(), server.URL+"/b", ""))
	assert.Equal(t, int32(1), robotsHits.Load(), "robots.txt fetched once per host")
}

func TestWithParams(t *testing.T) {
	got, err := withParams("https://www.ebay.com/sch/i.html?_pgn=1", url.Values{"_pgn": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, "https://www.ebay.com/sch/i.html?_pgn=3", got)

	got, err = withParams("https://www.ebay.com/sch/i.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://www.ebay.com/sch/i.html", got)
}
