// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the cached
// GitHub profile rows, gated on a staleness predicate expressed in elapsed
// time.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-badge-backend/internal/domain"
)

// GetFreshGithubUser returns the cached profile row for username when it
// was refreshed within maxAge, or ErrNotFound when the row is missing or
// stale. A stale row is the caller's trigger to refresh.
func GetFreshGithubUser(ctx context.Context, db *gorm.DB, username string, maxAge time.Duration) (*domain.GithubUser, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	var row domain.GithubUser
	err := db.WithContext(ctx).
		Where("username = ? AND updated_at > ?", username, cutoff).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertGithubUser replaces the cached profile row for username wholesale,
// refreshing its timestamp. Conflicts resolve inside the store; overlapping
// deferred refreshes for the same username simply last-write-win.
func UpsertGithubUser(ctx context.Context, db *gorm.DB, username string, followers, following int) error {
	now := time.Now().UTC()
	row := domain.GithubUser{
		Username:  username,
		Followers: followers,
		Following: following,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"followers":  followers,
			"following":  following,
			"updated_at": now,
		}),
	}).Create(&row).Error
}
