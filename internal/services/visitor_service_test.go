package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tbourn/go-badge-backend/internal/github"
	"github.com/tbourn/go-badge-backend/internal/kv"
	"github.com/tbourn/go-badge-backend/internal/repo"
	"github.com/tbourn/go-badge-backend/internal/tasks"
)

// fakeProfiles counts lookups and returns a fixed profile.
type fakeProfiles struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeProfiles) Lookup(ctx context.Context, username string) (*github.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &github.Profile{Login: username, Followers: 3, Following: 1}, nil
}

func (f *fakeProfiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newVisitorService(t *testing.T) (*VisitorService, *fakeProfiles, *miniredis.Miniredis, *gorm.DB) {
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

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	profiles := &fakeProfiles{}
	svc := &VisitorService{
		DB:               db,
		Cache:            kv.NewCache(client, "badge"),
		Profiles:         profiles,
		Exec:             tasks.NewExecutor(5 * time.Second),
		CacheTTL:         time.Minute,
		ProfileMaxAge:    24 * time.Hour,
		TrustedUAPrefix:  "github-camo",
		RelayFingerprint: "github-camo",
	}
	return svc, profiles, server, db
}

func drain(t *testing.T, exec *tasks.Executor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.Shutdown(ctx); err != nil {
		t.Fatalf("draining deferred tasks: %v", err)
	}
}

func TestIsTrustedOrigin(t *testing.T) {
	svc := &VisitorService{TrustedUAPrefix: "github-camo", RelayFingerprint: "github-camo"}

	cases := []struct {
		ua, relay string
		want      bool
	}{
		{"github-camo (abc123)", "1.1 github-camo", true},
		{"github-camo", "github-camo", true},
		{"Mozilla/5.0", "1.1 github-camo", false},
		{"github-camo (abc123)", "", false},
		{"", "", false},
		{"not-github-camo", "github-camo", false},
	}
	for _, tc := range cases {
		if got := svc.IsTrustedOrigin(tc.ua, tc.relay); got != tc.want {
			t.Fatalf("IsTrustedOrigin(%q, %q) = %v, want %v", tc.ua, tc.relay, got, tc.want)
		}
	}
}

func TestCountUntrustedNewSubject(t *testing.T) {
	svc, _, _, db := newVisitorService(t)

	n, err := svc.Count(context.Background(), "alice/repo", false)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("untrusted new subject = %d, want 0", n)
	}

	drain(t, svc.Exec)
	if _, err := repo.GetVisitorCount(context.Background(), db, "alice/repo"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("untrusted traffic must never create durable rows, got %v", err)
	}
}

func TestCountTrustedNewSubject(t *testing.T) {
	svc, _, _, db := newVisitorService(t)
	ctx := context.Background()

	n, err := svc.Count(ctx, "alice/repo", true)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("trusted new subject = %d, want 1", n)
	}

	drain(t, svc.Exec)

	durable, err := repo.GetVisitorCount(ctx, db, "alice/repo")
	if err != nil {
		t.Fatalf("GetVisitorCount: %v", err)
	}
	if durable != 1 {
		t.Fatalf("durable count = %d, want 1 after the deferred increment", durable)
	}
}

func TestCountServesCacheHitWithoutStore(t *testing.T) {
	svc, _, _, _ := newVisitorService(t)
	ctx := context.Background()

	if err := svc.Cache.Set(ctx, "views:alice", "41", time.Minute); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	n, err := svc.Count(ctx, "alice", false)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 41 {
		t.Fatalf("cached count = %d, want 41", n)
	}
}

func TestCountTrustedCacheHitStillIncrements(t *testing.T) {
	svc, _, _, db := newVisitorService(t)
	ctx := context.Background()

	if err := svc.Cache.Set(ctx, "views:alice", "41", time.Minute); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	if _, err := svc.Count(ctx, "alice", true); err != nil {
		t.Fatalf("Count: %v", err)
	}
	drain(t, svc.Exec)

	durable, err := repo.GetVisitorCount(ctx, db, "alice")
	if err != nil {
		t.Fatalf("GetVisitorCount: %v", err)
	}
	if durable != 1 {
		t.Fatalf("durable count = %d, want 1 (the cache hit must not swallow the view)", durable)
	}
}

func TestProfileRefreshedOncePerWindow(t *testing.T) {
	svc, profiles, _, _ := newVisitorService(t)
	ctx := context.Background()

	if _, err := svc.Count(ctx, "alice/repo", true); err != nil {
		t.Fatalf("first count: %v", err)
	}
	drain(t, svc.Exec)

	if profiles.count() != 1 {
		t.Fatalf("lookups = %d, want 1", profiles.count())
	}

	// The cached profile is fresh now, so further views skip the lookup.
	svc.Exec = tasks.NewExecutor(5 * time.Second)
	if _, err := svc.Count(ctx, "alice/repo", true); err != nil {
		t.Fatalf("second count: %v", err)
	}
	drain(t, svc.Exec)

	if profiles.count() != 1 {
		t.Fatalf("lookups = %d, want still 1 within the staleness window", profiles.count())
	}
}

func TestProfileLookupFailureIsSwallowed(t *testing.T) {
	svc, profiles, _, db := newVisitorService(t)
	profiles.err = errors.New("upstream down")
	ctx := context.Background()

	if _, err := svc.Count(ctx, "alice/repo", true); err != nil {
		t.Fatalf("Count: %v", err)
	}
	drain(t, svc.Exec)

	// The increment must land even when the profile fetch fails.
	n, err := repo.GetVisitorCount(ctx, db, "alice/repo")
	if err != nil || n != 1 {
		t.Fatalf("count = %d err = %v, want 1 and nil", n, err)
	}
}

func TestCountStoreUnavailable(t *testing.T) {
	svc, _, server, db := newVisitorService(t)

	server.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	_, err := svc.Count(context.Background(), "alice", false)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestOwnerOf(t *testing.T) {
	cases := []struct{ in, want string }{
		{"alice/repo", "alice"},
		{"alice", "alice"},
		{"alice/repo/sub", "alice"},
	}
	for _, tc := range cases {
		if got := ownerOf(tc.in); got != tc.want {
			t.Fatalf("ownerOf(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
