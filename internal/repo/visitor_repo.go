// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Visitor
// counter, including the atomic upsert increment the whole counting
// pipeline's monotonicity guarantee rests on.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-badge-backend/internal/domain"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// IncrementVisitor atomically bumps the counter for subject: it creates the
// row at count 1 when absent, otherwise increments in place. The
// conflict-update runs inside the store, never as read-increment-write from
// the client, so overlapping deferred tasks for the same subject cannot
// lose updates. Returns the count after the increment (a concurrent
// increment may already be included; the value never understates).
func IncrementVisitor(ctx context.Context, db *gorm.DB, subject string) (int64, error) {
	now := time.Now().UTC()
	row := domain.Visitor{Subject: subject, Count: 1, UpdatedAt: now}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("count + 1"),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}

	return GetVisitorCount(ctx, db, subject)
}

// GetVisitorCount reads the durable count for subject. A subject that has
// never been counted returns ErrNotFound.
func GetVisitorCount(ctx context.Context, db *gorm.DB, subject string) (int64, error) {
	var row domain.Visitor
	err := db.WithContext(ctx).Where("subject = ?", subject).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}
