package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/metrics"
)

func TestRequestIDPropagatesOrMints(t *testing.T) {
	handler := RequestID(logger.Nop())(okHandler())

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"caller id", map[string]string{requestIDHeader: "req-1"}, "req-1"},
		{"trace fallback", map[string]string{cloudTraceHeader: "105445aa7843bc8bf206b12000100000/1;o=1"}, "105445aa7843bc8bf206b12000100000"},
		{"caller wins over trace", map[string]string{requestIDHeader: "req-2", cloudTraceHeader: "abc/1"}, "req-2"},
		{"oversized minted", map[string]string{requestIDHeader: strings.Repeat("x", maxRequestIDLength+1)}, ""},
		{"control chars minted", map[string]string{requestIDHeader: "bad\tid"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			got := rec.Header().Get(requestIDHeader)
			if tc.want == "" {
				if len(got) != 36 {
					t.Fatalf("expected a minted uuid, got %q", got)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Fatalf("expected internal error envelope, got %s", rec.Body.String())
	}
}

func TestLoggingRecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(Logging(logger.Nop(), m))
	r.Get("/api/v1/coach/transactions/{transactionId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/coach/transactions/abc", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}

	count, err := testutil.GatherAndCount(reg, "http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one series, got %d", count)
	}
	expected := `
# HELP http_requests_total API requests served, by route, method and status.
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/api/v1/coach/transactions/{transactionId}",status="204"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestLoggingSkipsHealthyProbes(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	r := chi.NewRouter()
	r.Use(Logging(logg, nil))
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Post("/api/v1/coach/payouts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if buf.Len() != 0 {
		t.Fatalf("healthy probe should not be logged: %s", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if !strings.Contains(buf.String(), "request failed") {
		t.Fatalf("failing probe should be logged: %s", buf.String())
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/coach/payouts", nil))
	line := buf.String()
	if !strings.Contains(line, `"status":201`) || !strings.Contains(line, `"bytes":11`) {
		t.Fatalf("unexpected access line: %s", line)
	}
}
