package domain

import (
	"context"
	"errors"
)

// Service gates feature access and meters consumption.
type Service interface {
	// Evaluate returns a read-only access decision. It may serve slightly
	// stale usage for display purposes and never mutates state.
	Evaluate(ctx context.Context, userID, featureID string) (Decision, error)

	// Consume records one use of the feature. It returns true iff the
	// increment was accepted; false means the caller must show an
	// upgrade or retry prompt. Must be called at most once per attempted
	// use, before the gated action runs.
	Consume(ctx context.Context, userID, featureID string) (bool, error)

	// GetUsage returns the durable record for diagnostics. A nil record
	// means no consumption has been recorded yet.
	GetUsage(ctx context.Context, userID, featureID string) (*UsageRecord, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrStoreUnavailable = errors.New("store_unavailable")
)
