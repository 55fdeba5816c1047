// Package trace stamps request IDs on ledger traffic and logs each exchange.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"budget/internal/log"

	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID carries the request ID between client and service.
	HeaderRequestID = "X-Request-ID"
)

// Metrics tracks request counts and the last observed latency.
type Metrics struct {
	TotalRequests       int64
	FailedRequests      int64
	AverageResponseTime int64 // in microseconds
}

type counters struct {
	total, failed, avg atomic.Int64
}

func (c *counters) observe(d time.Duration, failed bool) {
	c.total.Add(1)
	if failed {
		c.failed.Add(1)
	}
	c.avg.Store(d.Microseconds())
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		TotalRequests:       c.total.Load(),
		FailedRequests:      c.failed.Load(),
		AverageResponseTime: c.avg.Load(),
	}
}

// Transport is an http.RoundTripper for outgoing ledger calls. It reuses the
// request ID already in the context, or generates one.
type Transport struct {
	Base   http.RoundTripper
	Logger *log.Logger

	metrics counters
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *log.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: log.OrDefault(logger, log.ComponentTrace)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	requestID := GetRequestID(ctx)
	if requestID == "" {
		requestID = GenerateRequestID()
		ctx = WithRequestID(ctx, requestID)
	}
	req = req.Clone(ctx)
	req.Header.Set(HeaderRequestID, requestID)

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.metrics.observe(duration, true)
		t.Logger.WarnContext(ctx, "Ledger request failed",
			"request_id", requestID,
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, err
	}

	t.metrics.observe(duration, resp.StatusCode >= 500)
	t.Logger.DebugContext(ctx, "Ledger request completed",
		"request_id", requestID,
		"method", req.Method,
		"path", req.URL.Path,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())
	return resp, nil
}

// GetMetrics returns current metrics
func (t *Transport) GetMetrics() Metrics {
	return t.metrics.snapshot()
}

// Middleware traces requests served by the development ledger.
type Middleware struct {
	logger  *log.Logger
	metrics counters
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(logger *log.Logger) *Middleware {
	return &Middleware{logger: log.OrDefault(logger, log.ComponentTrace)}
}

// Middleware returns HTTP middleware for request tracing. An incoming
// X-Request-ID is honoured so client and server logs correlate.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		ctx := WithRequestID(r.Context(), requestID)
		ctx = log.NewContext(ctx, m.logger.With("request_id", requestID))
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.metrics.observe(duration, rw.statusCode >= 500)

		args := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
		}
		switch {
		case rw.statusCode >= 500:
			m.logger.ErrorContext(ctx, "HTTP request completed", args...)
		case rw.statusCode >= 400:
			m.logger.WarnContext(ctx, "HTTP request completed", args...)
		default:
			m.logger.InfoContext(ctx, "HTTP request completed", args...)
		}
	})
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return m.metrics.snapshot()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
