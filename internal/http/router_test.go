package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/tbourn/go-badge-backend/internal/config"
	"github.com/tbourn/go-badge-backend/internal/repo"
)

// staticGenerator satisfies services.TextGenerator without any upstream.
type staticGenerator struct{ text string }

func (s staticGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.text, nil
}

func testConfig() config.Config {
	return config.Config{
		Port:    "0",
		GinMode: "test",
		RateLimit: config.RateLimitConfig{
			Limit:    60,
			Window:   time.Minute,
			Strategy: "fixed",
		},
		Counter: config.CounterConfig{
			CacheTTL:      time.Minute,
			ProfileMaxAge: 24 * time.Hour,
			TrustedUA:     "github-camo",
			RelayHeader:   "Via",
			RelayValue:    "github-camo",
		},
		AI: config.AIConfig{
			Cooldown:  10 * time.Second,
			CacheTTL:  90 * time.Second,
			Model:     "test",
			MaxTokens: 50,
		},
		GitHubAPIBase: "http://127.0.0.1:0",
		TaskTimeout:   5 * time.Second,
		OTEL:          config.OTELConfig{ServiceName: "badge-test"},
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	exec := RegisterRoutes(r, db, client, staticGenerator{text: "hi"}, testConfig())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = exec.Shutdown(ctx)
		_ = client.Close()
		server.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return r
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("expected Prometheus exposition output")
	}
}

func TestVisitorBadgeEndToEnd(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visitor-badge/alice/repo", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/svg+xml") {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<svg") || !strings.Contains(body, "Profile views") {
		t.Fatalf("unexpected badge body:\n%s", body)
	}

	h := w.Header()
	if h.Get("X-RateLimit-Limit") != "60" {
		t.Fatalf("X-RateLimit-Limit = %q", h.Get("X-RateLimit-Limit"))
	}
	if h.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("badges must be embeddable from anywhere")
	}
	if h.Get("Content-Security-Policy") == "" {
		t.Fatalf("badge responses must carry the CSP")
	}
	if h.Get("X-Request-ID") == "" {
		t.Fatalf("responses must carry a correlation id")
	}
}

func TestAIBadgeEndToEnd(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ai-badge", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hi") {
		t.Fatalf("generated text missing:\n%s", w.Body.String())
	}
}

func TestUnknownRouteServesBadge(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Not Found") {
		t.Fatalf("404 must render a badge:\n%s", w.Body.String())
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig()
	cfg.RateLimit.Limit = 2

	gin.SetMode(gin.TestMode)
	r := gin.New()
	exec := RegisterRoutes(r, db, client, staticGenerator{text: "hi"}, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = exec.Shutdown(ctx)
		_ = client.Close()
		server.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/visitor-badge/alice", nil)
		req.RemoteAddr = "203.0.113.9:12345"
		r.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatalf("429 must carry Retry-After")
	}
	if !strings.Contains(last.Body.String(), "Rate Limited") {
		t.Fatalf("429 must render the error badge:\n%s", last.Body.String())
	}
	if last.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("429 badge must carry the CSP")
	}
	if last.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("429 badge must stay embeddable from anywhere")
	}
	if last.Header().Get("Cache-Control") != "no-cache, max-age=0, must-revalidate" {
		t.Fatalf("Cache-Control = %q", last.Header().Get("Cache-Control"))
	}
}
