package scan

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorType classifies a scan failure for retry decisions and reporting.
type ErrorType string

const (
	ErrorNone               ErrorType = ""
	ErrorTimeout            ErrorType = "navigation_timeout"
	ErrorNetwork            ErrorType = "network_error"
	ErrorDNS                ErrorType = "dns_failure"
	ErrorBotProtection      ErrorType = "bot_protection"
	ErrorValidation         ErrorType = "validation_error"
	ErrorResourceExhaustion ErrorType = "resource_exhaustion"
	ErrorUnknown            ErrorType = "unknown"
)

// ErrBrowserUnavailable marks failures of the browser process itself, as
// opposed to failures of the page being scanned. It crosses the executor
// boundary as a real error and must be caught at dispatch.
var ErrBrowserUnavailable = errors.New("browser unavailable")

// Retryable reports whether the failure class is worth another attempt.
// Bot protection is semi-retryable: the host is alive, just hostile.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTimeout, ErrorNetwork, ErrorDNS, ErrorBotProtection, ErrorResourceExhaustion:
		return true
	default:
		return false
	}
}

// typedError carries an already-classified failure across the retry
// boundary, so classification survives outcome round-trips.
type typedError struct {
	t   ErrorType
	msg string
}

func (e *typedError) Error() string { return e.msg }

// NewTypedError builds an error whose Classify result is fixed to t.
func NewTypedError(t ErrorType, msg string) error {
	return &typedError{t: t, msg: msg}
}

// Chromium net error fragments surfaced through rod navigation errors.
var dnsErrorMarkers = []string{
	"ERR_NAME_NOT_RESOLVED",
	"ERR_NAME_RESOLUTION_FAILED",
	"ERR_DNS_",
	"no such host",
}

var networkErrorMarkers = []string{
	"ERR_CONNECTION_",
	"ERR_SSL_",
	"ERR_CERT_",
	"ERR_ADDRESS_UNREACHABLE",
	"ERR_INTERNET_DISCONNECTED",
	"ERR_EMPTY_RESPONSE",
	"ERR_HTTP2_",
	"ERR_TOO_MANY_REDIRECTS",
	"connection refused",
	"connection reset",
	"broken pipe",
}

var crashErrorMarkers = []string{
	"browser has been closed",
	"page has been closed",
	"target closed",
	"websocket: close",
	"cdp connection",
	"ERR_INSUFFICIENT_RESOURCES",
	"cannot allocate memory",
}

// Classify maps an error from the navigation/browser path onto the
// failure taxonomy.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorNone
	}
	var terr *typedError
	if errors.As(err, &terr) {
		return terr.t
	}
	if errors.Is(err, ErrBrowserUnavailable) {
		return ErrorResourceExhaustion
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}

	msg := err.Error()
	for _, marker := range crashErrorMarkers {
		if strings.Contains(msg, marker) {
			return ErrorResourceExhaustion
		}
	}
	for _, marker := range dnsErrorMarkers {
		if strings.Contains(msg, marker) {
			return ErrorDNS
		}
	}
	for _, marker := range networkErrorMarkers {
		if strings.Contains(msg, marker) {
			return ErrorNetwork
		}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "ERR_TIMED_OUT") {
		return ErrorTimeout
	}
	if strings.Contains(msg, "bot protection") {
		return ErrorBotProtection
	}
	if strings.Contains(msg, "server error") {
		return ErrorNetwork
	}
	return ErrorUnknown
}
