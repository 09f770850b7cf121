package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	subscriptiondomain "github.com/gradpath/gradpath/internal/subscription/domain"
)

type repo struct {
	db *gorm.DB
}

// Provide returns the gorm-backed subscription repository.
func Provide(db *gorm.DB) subscriptiondomain.Repository {
	return &repo{db: db}
}

// FindCurrent returns the most recently updated subscription for the
// user, or nil when the user has never subscribed.
func (r *repo) FindCurrent(ctx context.Context, userID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", subscriptiondomain.ErrUnavailable, err)
	}
	return &sub, nil
}
