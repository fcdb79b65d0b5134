package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// fakeCounter records the last Count call and returns canned results.
type fakeCounter struct {
	count   int64
	err     error
	subject string
	trusted bool
	calls   int
}

func (f *fakeCounter) Count(ctx context.Context, subject string, trusted bool) (int64, error) {
	f.calls++
	f.subject = subject
	f.trusted = trusted
	return f.count, f.err
}

func (f *fakeCounter) IsTrustedOrigin(ua, relay string) bool {
	return strings.HasPrefix(ua, "github-camo") && strings.Contains(relay, "github-camo")
}

func newVisitorRouter(svc VisitorCounter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/visitor-badge/*subject", VisitorBadge(svc, "Via"))
	return r
}

func TestVisitorBadgeRenders(t *testing.T) {
	svc := &fakeCounter{count: 1234}
	r := newVisitorRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visitor-badge/alice/repo", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/svg+xml") {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Profile views") {
		t.Fatalf("default label missing:\n%s", body)
	}
	if !strings.Contains(body, "1,234") {
		t.Fatalf("formatted count missing:\n%s", body)
	}
	if svc.subject != "alice/repo" {
		t.Fatalf("subject = %q, want alice/repo", svc.subject)
	}
}

func TestVisitorBadgeTrustedDetection(t *testing.T) {
	svc := &fakeCounter{count: 1}
	r := newVisitorRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/visitor-badge/alice", nil)
	req.Header.Set("User-Agent", "github-camo (abc123)")
	req.Header.Set("Via", "1.1 github-camo")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !svc.trusted {
		t.Fatalf("proxied request must be classified trusted")
	}

	// A direct browser hit is untrusted.
	svc2 := &fakeCounter{count: 1}
	r2 := newVisitorRouter(svc2)
	req2 := httptest.NewRequest(http.MethodGet, "/visitor-badge/alice", nil)
	req2.Header.Set("User-Agent", "Mozilla/5.0")
	w2 := httptest.NewRecorder()
	r2.ServeHTTP(w2, req2)

	if svc2.trusted {
		t.Fatalf("direct hit must be classified untrusted")
	}
}

func TestVisitorBadgeETag(t *testing.T) {
	svc := &fakeCounter{count: 42}
	r := newVisitorRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visitor-badge/alice", nil))

	etag := w.Header().Get("ETag")
	if etag != `"42"` {
		t.Fatalf("ETag = %q, want %q", etag, `"42"`)
	}

	req := httptest.NewRequest(http.MethodGet, "/visitor-badge/alice", nil)
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w2.Code)
	}
	if w2.Body.Len() != 0 {
		t.Fatalf("304 must carry no body")
	}
}

func TestVisitorBadgeStyleParams(t *testing.T) {
	svc := &fakeCounter{count: 7}
	r := newVisitorRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/visitor-badge/alice?label=Hits&color=red&style=flat-square", nil))

	body := w.Body.String()
	if !strings.Contains(body, "Hits") {
		t.Fatalf("custom label missing:\n%s", body)
	}
	if !strings.Contains(body, "#e05d44") {
		t.Fatalf("red message segment missing:\n%s", body)
	}
}

func TestVisitorBadgeServiceError(t *testing.T) {
	svc := &fakeCounter{err: errors.New("db down")}
	r := newVisitorRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visitor-badge/alice", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Server Error") {
		t.Fatalf("expected the server error badge:\n%s", w.Body.String())
	}
}

func TestVisitorBadgeMissingSubject(t *testing.T) {
	svc := &fakeCounter{}
	r := newVisitorRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visitor-badge/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Missing Subject") {
		t.Fatalf("expected the missing-subject badge:\n%s", w.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("the service must not be consulted without a subject")
	}
}
