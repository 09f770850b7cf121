// Package domain contains the subscription mirror consumed as the tier
// oracle. Rows are maintained by the billing webhook pipeline; this
// service only reads them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tier is the subscription level used for entitlement decisions.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Status represents billing-provider subscription states.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusTrialing Status = "TRIALING"
	StatusPastDue  Status = "PAST_DUE"
	StatusCanceled Status = "CANCELED"
	StatusEnded    Status = "ENDED"
)

// Subscription mirrors one billing-provider subscription for a user.
type Subscription struct {
	ID                     snowflake.ID      `gorm:"primaryKey"`
	UserID                 string            `gorm:"type:text;not null;index"`
	Status                 Status            `gorm:"type:text;not null"`
	PlanCode               string            `gorm:"type:text;not null"`
	Provider               string            `gorm:"type:text;not null"`
	ProviderSubscriptionID string            `gorm:"type:text;not null"`
	CurrentPeriodEnd       *time.Time        `gorm:""`
	CanceledAt             *time.Time        `gorm:""`
	Metadata               datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Entitled reports whether the subscription grants paid-tier access at now.
func (s Subscription) Entitled(now time.Time) bool {
	switch s.Status {
	case StatusActive, StatusTrialing:
	default:
		return false
	}
	if s.CurrentPeriodEnd != nil && now.After(*s.CurrentPeriodEnd) {
		return false
	}
	return true
}
