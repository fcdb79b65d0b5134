package repo

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGetVisitorCountMissing(t *testing.T) {
	db := newTestDB(t)

	_, err := GetVisitorCount(context.Background(), db, "nobody/nothing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncrementVisitorCreatesAtOne(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, err := IncrementVisitor(ctx, db, "alice/repo")
	if err != nil {
		t.Fatalf("IncrementVisitor: %v", err)
	}
	if n != 1 {
		t.Fatalf("first increment = %d, want 1", n)
	}
}

func TestIncrementVisitorMonotonic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var last int64
	for i := 1; i <= 5; i++ {
		n, err := IncrementVisitor(ctx, db, "alice/repo")
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if n <= last {
			t.Fatalf("count must strictly grow: %d after %d", n, last)
		}
		last = n
	}
	if last != 5 {
		t.Fatalf("final count = %d, want 5", last)
	}

	got, err := GetVisitorCount(ctx, db, "alice/repo")
	if err != nil {
		t.Fatalf("GetVisitorCount: %v", err)
	}
	if got != 5 {
		t.Fatalf("durable count = %d, want 5", got)
	}
}

func TestIncrementVisitorSubjectsIsolated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := IncrementVisitor(ctx, db, "alice"); err != nil {
		t.Fatalf("increment alice: %v", err)
	}
	if _, err := IncrementVisitor(ctx, db, "bob"); err != nil {
		t.Fatalf("increment bob: %v", err)
	}
	if _, err := IncrementVisitor(ctx, db, "alice"); err != nil {
		t.Fatalf("increment alice: %v", err)
	}

	a, _ := GetVisitorCount(ctx, db, "alice")
	b, _ := GetVisitorCount(ctx, db, "bob")
	if a != 2 || b != 1 {
		t.Fatalf("alice=%d bob=%d, want 2 and 1", a, b)
	}
}

func TestIncrementVisitorConcurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := IncrementVisitor(ctx, db, "hot/subject"); err != nil {
				t.Errorf("concurrent increment: %v", err)
			}
		}()
	}
	wg.Wait()

	n, err := GetVisitorCount(ctx, db, "hot/subject")
	if err != nil {
		t.Fatalf("GetVisitorCount: %v", err)
	}
	if n != workers {
		t.Fatalf("count = %d, want %d (no lost updates)", n, workers)
	}
}
