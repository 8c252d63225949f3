package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "spendly/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(nil, applog.New(applog.Config{Level: slog.LevelDebug, Output: &buf}))

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("generated id = %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatal("response header must echo the request id")
	}
	if !strings.Contains(buf.String(), "HTTP request completed") || !strings.Contains(buf.String(), "status_code=500") {
		t.Fatalf("log output = %q", buf.String())
	}
	if met := m.GetMetrics(); met.TotalRequests != 1 || met.ServerErrors != 1 {
		t.Fatalf("metrics = %+v", met)
	}
}

func TestMiddlewareReusesIncomingID(t *testing.T) {
	m := NewMiddleware(nil, applog.New(applog.Config{Output: &bytes.Buffer{}}))
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("id = %q", rr.Header().Get(HeaderRequestID))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "bad id with spaces")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if !strings.HasPrefix(rr.Header().Get(HeaderRequestID), "req_") {
		t.Fatal("malformed incoming id must be replaced")
	}
}
