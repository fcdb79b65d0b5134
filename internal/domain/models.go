// Package domain defines the persistence models for visitor counters and
// the external-profile staleness cache. These types are mapped with GORM
// and form the durable data layer of the badge service.
package domain

import "time"

// Visitor is the durable view counter for one subject (a "user/repo" path
// or profile name). The count only moves through the atomic upsert in the
// repo layer, so it is monotonically non-decreasing under concurrent
// increments. Rows are never deleted.
//
// Fields:
//   - Subject: the counter key; primary key.
//   - Count: total recorded views, >= 0.
//   - UpdatedAt: timestamp of the last increment.
type Visitor struct {
	Subject   string    `json:"subject"    gorm:"type:varchar(255);primaryKey"`
	Count     int64     `json:"count"      gorm:"not null;default:0;check:count >= 0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Visitor.
func (Visitor) TableName() string { return "visitors" }

// GithubUser caches external profile data for a subject owner. A row is
// refreshed at most once per staleness window; the absence of a fresh row
// is the refresh trigger. The request path only reads this table; writes
// happen exclusively in deferred reconciliation.
type GithubUser struct {
	Username  string    `json:"username"   gorm:"type:varchar(64);primaryKey"`
	Followers int       `json:"followers"  gorm:"not null;default:0"`
	Following int       `json:"following"  gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for GithubUser.
func (GithubUser) TableName() string { return "github_users" }
