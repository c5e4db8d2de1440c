package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("generated id %q, header %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" {
		t.Fatalf("incoming id not kept: %q", seen)
	}
}

func TestLoggerAttachesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	h := RequestID(Logger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Count(out, `"request_id":"rid-1"`) != 2 {
		t.Fatalf("expected request id on both lines, got %s", out)
	}
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"path":"/v1/healthz"`) {
		t.Fatalf("access line missing fields: %s", out)
	}
}

func TestRouteLabel(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Get("/v1/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.ServeHTTP(w, req)
		pattern = routeLabel(req)
	})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/123", nil))
	if pattern != unmatchedRoute {
		t.Fatalf("outside chi the path must not be used, got %q", pattern)
	}

	r2 := chi.NewRouter()
	r2.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = routeLabel(req)
		})
	})
	r2.Get("/v1/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {})
	r2.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/123", nil))
	if pattern != "/v1/sessions/{id}" {
		t.Fatalf("pattern = %q", pattern)
	}
}

func countSeries(c prometheus.Collector) int {
	ch := make(chan prometheus.Metric, 1024)
	c.Collect(ch)
	close(ch)
	return len(ch)
}

func TestMetricsUnknownPathsShareOneSeries(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/v1/healthz", func(w http.ResponseWriter, req *http.Request) {})

	before, beforeHist := countSeries(httpRequestsTotal), countSeries(httpRequestDuration)
	for _, path := range []string{"/scan/1", "/scan/2", "/wp-admin/setup.php"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
	if added := countSeries(httpRequestsTotal) - before; added > 1 {
		t.Fatalf("unknown paths added %d series, want at most 1", added)
	}
	if added := countSeries(httpRequestDuration) - beforeHist; added > 1 {
		t.Fatalf("unknown paths added %d histogram series, want at most 1", added)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	h := CORS([]string{"https://ui.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example.com" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
