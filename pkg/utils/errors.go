package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrClientHTTPError   = errors.New("client HTTP error (4xx)")        // Wraps original error/status
	ErrServerHTTPError   = errors.New("server HTTP error (5xx)")        // Wraps original error/status
	ErrOtherHTTPError    = errors.New("other HTTP error (non-2xx)")     // Wraps original error/status
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")       // Only with respect_robots
	ErrRequestCreation   = errors.New("failed to create HTTP request")  // Bad URL or method
	ErrResponseBodyRead  = errors.New("failed to read response body")   // Connection dropped mid-body
	ErrBrowserFetch      = errors.New("headless browser fetch failed")  // Wraps chromedp errors
	ErrParsing           = errors.New("parsing error")                  // Wraps specific parsing error (HTML, URL, JSON)
	ErrDatabase          = errors.New("database error")                 // Wraps badger/pgx errors
	ErrQueue             = errors.New("queue error")                    // Wraps redis errors
	ErrJobNotFound       = errors.New("job not found")                  // Maps to 404
	ErrInvalidTransition = errors.New("invalid job status transition")  // Backward or out-of-terminal move
	ErrInvalidRequest    = errors.New("invalid search request")         // Maps to 400
	ErrConfigValidation  = errors.New("configuration validation error") // Fatal at startup
)

// WrapErrorf wraps err with a formatted message, keeping it matchable with errors.Is.
// Returns nil when err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}

// IsPageLevel reports whether err belongs to the fetch family that a job
// records and skips instead of aborting on.
func IsPageLevel(err error) bool {
	if err == nil {
		return false
	}
	// Sentinels wrapped by the fetchers
	switch {
	case errors.Is(err, ErrClientHTTPError),
		errors.Is(err, ErrServerHTTPError),
		errors.Is(err, ErrOtherHTTPError),
		errors.Is(err, ErrRobotsDisallowed),
		errors.Is(err, ErrRequestCreation),
		errors.Is(err, ErrResponseBodyRead),
		errors.Is(err, ErrBrowserFetch):
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true // per-fetch timeout
	}
	var netErr net.Error
	return errors.As(err, &netErr) // DNS, refused, reset
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrClientHTTPError):
		// Split out the codes that usually mean blocking or throttling
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrBrowserFetch):
		return "Browser_Fetch"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrQueue):
		return "Queue_Other"
	case errors.Is(err, ErrJobNotFound):
		return "Job_NotFound"
	case errors.Is(err, ErrInvalidTransition):
		return "Job_InvalidTransition"
	case errors.Is(err, ErrInvalidRequest):
		return "Request_Invalid"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
