package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "nil", err: nil, want: ErrorNone},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrorTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("navigate: %w", context.DeadlineExceeded), want: ErrorTimeout},
		{name: "dns error type", err: &net.DNSError{Err: "no such host", Name: "x.com", IsNotFound: true}, want: ErrorDNS},
		{name: "chromium dns", err: errors.New("net::ERR_NAME_NOT_RESOLVED"), want: ErrorDNS},
		{name: "chromium connection", err: errors.New("net::ERR_CONNECTION_REFUSED"), want: ErrorNetwork},
		{name: "tls failure", err: errors.New("net::ERR_CERT_DATE_INVALID"), want: ErrorNetwork},
		{name: "browser crash", err: errors.New("browser has been closed"), want: ErrorResourceExhaustion},
		{name: "wrapped sentinel", err: fmt.Errorf("%w: launch failed", ErrBrowserUnavailable), want: ErrorResourceExhaustion},
		{name: "bot wall", err: errors.New("bot protection suspected (HTTP 503)"), want: ErrorBotProtection},
		{name: "server error", err: errors.New("server error (HTTP 502)"), want: ErrorNetwork},
		{name: "typed error", err: NewTypedError(ErrorValidation, "bad input"), want: ErrorValidation},
		{name: "mystery", err: errors.New("something odd"), want: ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, ErrorTimeout.Retryable())
	assert.True(t, ErrorNetwork.Retryable())
	assert.True(t, ErrorDNS.Retryable())
	assert.True(t, ErrorBotProtection.Retryable())
	assert.True(t, ErrorResourceExhaustion.Retryable())
	assert.False(t, ErrorValidation.Retryable())
	assert.False(t, ErrorUnknown.Retryable())
	assert.False(t, ErrorNone.Retryable())
}
