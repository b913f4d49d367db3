package fetch

import (
	"errors"
	"net"
	"net/http"
	"net/http/cookiejar"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
)

// NewClient creates the shared HTTP client. It keeps a cookie jar so that
// consecutive page requests of a job look like one browsing session.
func NewClient(cfg config.HTTPClientConfig, log *logrus.Entry) *http.Client {
	log.Debug("Initializing HTTP client...")

	// Dialer carries the connect and keep-alive timeouts from config
	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment, // Honour HTTP(S)_PROXY
		DialContext:            dialer.DialContext,        // Configured dialer
		ForceAttemptHTTP2:      true,                      // Overridden below when set explicitly
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20, // 1MB header cap
	}
	// Explicit http_client.force_attempt_http2 wins over the default
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}

	// cookiejar.New only fails on a non-nil options value with a bad PublicSuffixList
	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Timeout:   cfg.Timeout, // Whole-request cap; the fetcher also sets a per-fetch ctx timeout
		Transport: transport,
		Jar:       jar, // Session cookies survive between pages of a job
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Same limit as net/http's default policy
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil // Follow
		},
	}
}
