package domain

import (
	"context"
	"errors"
)

// Oracle answers the current subscription tier for a user. Callers must
// treat an error as "tier unknown" and fall back to the free tier; the
// oracle never guesses paid.
type Oracle interface {
	Tier(ctx context.Context, userID string) (Tier, error)
}

// Repository reads the subscription mirror.
type Repository interface {
	FindCurrent(ctx context.Context, userID string) (*Subscription, error)
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrUnavailable = errors.New("oracle_unavailable")
)
