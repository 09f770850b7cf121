// Package domain contains the persistence model and ports for the
// entitlement and usage-metering engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	"github.com/gradpath/gradpath/internal/catalog"
)

// UsageRecord is the durable consumption counter for one (user, feature)
// pair within the current window. It is created lazily on first consume
// and mutated only through ConditionalIncrement and ResetWindow.
type UsageRecord struct {
	ID          snowflake.ID        `gorm:"primaryKey"`
	UserID      string              `gorm:"type:text;not null;uniqueIndex:ux_usage_records_user_feature,priority:1"`
	FeatureID   string              `gorm:"type:text;not null;uniqueIndex:ux_usage_records_user_feature,priority:2"`
	Count       int64               `gorm:"not null;default:0"`
	WindowStart time.Time           `gorm:"not null"`
	ResetPeriod catalog.ResetPeriod `gorm:"type:text;not null"` // snapshot of the policy cadence at creation
	Metadata    datatypes.JSONMap   `gorm:"type:jsonb"`
	CreatedAt   time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// CachedUsage is a non-authoritative snapshot of a UsageRecord held by the
// local cache, tagged with when it was read from the durable store.
type CachedUsage struct {
	Record    UsageRecord
	FetchedAt time.Time
}

// IncrementResult reports the outcome of a conditional increment.
type IncrementResult struct {
	Accepted bool
	NewCount int64
}

// Decision is the transient answer to an entitlement check. It is never
// persisted.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Unlimited bool       `json:"unlimited"`
	Limit     int64      `json:"limit"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Stale     bool       `json:"stale,omitempty"` // served from cache while the store was unreachable
}
