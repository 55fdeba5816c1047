package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budget/internal/log"
)

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || a == b {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}

func TestTransportStampsRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(HeaderRequestID)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewTransport(nil, log.Discard())
	client := &http.Client{Transport: tr}

	ctx := WithRequestID(context.Background(), "req_fixed")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if seen != "req_fixed" {
		t.Fatalf("server saw request id %q", seen)
	}
	m := tr.GetMetrics()
	if m.TotalRequests != 1 || m.FailedRequests != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestMiddlewareEchoesRequestID(t *testing.T) {
	mw := NewMiddleware(log.Discard())
	var fromCtx string
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set(HeaderRequestID, "req_abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if fromCtx != "req_abc" || rec.Header().Get(HeaderRequestID) != "req_abc" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", fromCtx, rec.Header().Get(HeaderRequestID))
	}
	if rec.Code != http.StatusNotFound || mw.GetMetrics().TotalRequests != 1 {
		t.Fatalf("code=%d metrics=%+v", rec.Code, mw.GetMetrics())
	}
}
