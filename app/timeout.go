package app

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout applies when no request timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

// DefaultDeadlineBuffer is the time reserved between the request deadline and the server's
// write timeout, so a provider that runs out of time can still answer.
const DefaultDeadlineBuffer = 500 * time.Millisecond

// TimeoutConfig holds timeout configuration for the HTTP server.
type TimeoutConfig struct {
	// RequestTimeout bounds the time a provider pipeline may take. Defaults to
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// DeadlineBuffer is added on top of RequestTimeout for the server-level timeouts.
	// Defaults to DefaultDeadlineBuffer.
	DeadlineBuffer time.Duration
}

func (tc TimeoutConfig) requestTimeout() time.Duration {
	if tc.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}

	return tc.RequestTimeout
}

// ServerTimeouts returns the http.Server timeout values. They sit just above the per-request
// deadline so the deadline fires first and the pipeline stops before the connection is cut.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	buffer := tc.DeadlineBuffer
	if buffer <= 0 {
		buffer = DefaultDeadlineBuffer
	}

	timeout := tc.requestTimeout() + buffer

	// ReadHeaderTimeout: How long to wait for request headers.
	readHeaderTimeout = min(timeout, 5*time.Second)

	// ReadTimeout: Time from connection accept to request body fully read.
	readTimeout = timeout

	// WriteTimeout: Time from request header read end to response write end.
	writeTimeout = timeout

	// IdleTimeout: How long to keep idle keep-alive connections.
	idleTimeout = timeout

	return
}

// WithRequestDeadline returns middleware that bounds every request by the configured request
// timeout. Provider pipelines check the request context before each step, so a request that
// runs out of time is answered with 504 Gateway Timeout instead of late.
func WithRequestDeadline(tc TimeoutConfig) func(http.Handler) http.Handler {
	timeout := tc.requestTimeout()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestRemainingTime returns the duration until the request context deadline.
// Returns 0 if no deadline is set or if the deadline has passed.
func RequestRemainingTime(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}
