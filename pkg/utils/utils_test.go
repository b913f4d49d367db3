package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	assert.Equal(t, "None", CategorizeError(nil))
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"RobotsDisallowed", ErrRobotsDisallowed, "Policy_Robots"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"BrowserFetch", ErrBrowserFetch, "Browser_Fetch"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Queue", ErrQueue, "Queue_Other"},
		{"JobNotFound", ErrJobNotFound, "Job_NotFound"},
		{"InvalidTransition", ErrInvalidTransition, "Job_InvalidTransition"},
		{"InvalidRequest", ErrInvalidRequest, "Request_Invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_ClientHTTPCodes(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{404, "HTTP_404"},
		{403, "HTTP_403"},
		{429, "HTTP_429"},
		{418, "HTTP_4xx"},
	}
	for _, tt := range tests {
		err := fmt.Errorf("%w: status %d Some Status", ErrClientHTTPError, tt.code)
		assert.Equal(t, tt.expected, CategorizeError(err), "code %d", tt.code)
	}
}

func TestCategorizeError_ParsingErrors(t *testing.T) {
	assert.Equal(t, "Content_ParsingHTML", CategorizeError(fmt.Errorf("%w: HTML document", ErrParsing)))
	assert.Equal(t, "Content_ParsingURL", CategorizeError(fmt.Errorf("%w: bad URL", ErrParsing)))
	assert.Equal(t, "Content_ParsingJSON", CategorizeError(fmt.Errorf("%w: JSON value", ErrParsing)))
	assert.Equal(t, "Content_ParsingOther", CategorizeError(ErrParsing))
}

func TestCategorizeError_ContextErrors(t *testing.T) {
	assert.Equal(t, "System_ContextCanceled", CategorizeError(context.Canceled))
	assert.Equal(t, "System_ContextDeadlineExceeded", CategorizeError(fmt.Errorf("fetch: %w", context.DeadlineExceeded)))
}

func TestCategorizeError_NetworkStrings(t *testing.T) {
	assert.Equal(t, "Network_ConnectionRefused", CategorizeError(errors.New("dial tcp: connection refused")))
	assert.Equal(t, "Network_DNSLookup", CategorizeError(errors.New("lookup foo: no such host")))
	assert.Equal(t, "Network_TLS", CategorizeError(errors.New("x509: certificate signed by unknown authority")))
	assert.Equal(t, "Network_TimeoutGeneric", CategorizeError(errors.New("i/o timeout")))
}

func TestCategorizeError_Unknown(t *testing.T) {
	assert.Equal(t, "Unknown", CategorizeError(errors.New("something odd")))
}

func TestIsPageLevel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"client http", fmt.Errorf("%w: status 404", ErrClientHTTPError), true},
		{"server http", fmt.Errorf("%w: status 503", ErrServerHTTPError), true},
		{"robots", ErrRobotsDisallowed, true},
		{"browser", ErrBrowserFetch, true},
		{"fetch timeout", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"database", fmt.Errorf("%w: write failed", ErrDatabase), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPageLevel(tt.err))
		})
	}
}

func TestWrapErrorf_NilError(t *testing.T) {
	assert.Nil(t, WrapErrorf(nil, "context %d", 1))
}

func TestWrapErrorf_WrapsError(t *testing.T) {
	err := WrapErrorf(ErrDatabase, "saving job %s", "abc")
	assert.True(t, errors.Is(err, ErrDatabase))
	assert.Contains(t, err.Error(), "saving job abc")
}

// --- SanitizeFilename Tests ---

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"wireless mouse", "wireless_mouse"},
		{"usb-c  hub", "usb-c_hub"},
		{"a/b\\c:d", "a_b_c_d"},
		{"  __trim__  ", "trim"},
		{"", "untitled"},
		{"???", "untitled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeFilename(tt.input), "input %q", tt.input)
	}
}

func TestSanitizeFilename_LongNames(t *testing.T) {
	long := strings.Repeat("a", 250)
	assert.Len(t, SanitizeFilename(long), maxFilenameLength)
}
