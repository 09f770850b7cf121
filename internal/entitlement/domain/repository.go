package domain

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gradpath/gradpath/internal/catalog"
)

// Store is the durable usage counter port. ConditionalIncrement is the
// only operation that requires storage-level atomicity: the ceiling check
// and the increment execute as one conditional update, never as an
// application-level read-compare-write.
type Store interface {
	// Read returns the record for (userID, featureID), or nil when no
	// consumption has been recorded yet.
	Read(ctx context.Context, db *gorm.DB, userID, featureID string) (*UsageRecord, error)

	// ConditionalIncrement atomically increments the counter by one iff
	// count < limit, creating the record on first use. A limit of
	// catalog.Unlimited always increments.
	ConditionalIncrement(ctx context.Context, db *gorm.DB, userID, featureID string, limit int64, windowStart time.Time, period catalog.ResetPeriod) (IncrementResult, error)

	// ResetWindow zeroes the counter and advances the window start,
	// creating the record when absent.
	ResetWindow(ctx context.Context, db *gorm.DB, userID, featureID string, newWindowStart time.Time, period catalog.ResetPeriod) (*UsageRecord, error)

	// StaleWindows lists records whose window has elapsed, for the
	// reconciler sweep.
	StaleWindows(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]UsageRecord, error)
}

// Cache is the ephemeral usage mirror port. It is never the sole basis
// for a consume decision.
type Cache interface {
	Get(ctx context.Context, userID, featureID string) (CachedUsage, bool)
	Put(ctx context.Context, userID, featureID string, record UsageRecord)
	Invalidate(ctx context.Context, userID, featureID string)
}
