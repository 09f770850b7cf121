package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gradpath/gradpath/internal/cache"
	"github.com/gradpath/gradpath/internal/clock"
	subscriptiondomain "github.com/gradpath/gradpath/internal/subscription/domain"
)

const tierCacheTTL = 45 * time.Second

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  subscriptiondomain.Repository
	Clock clock.Clock
}

// Service is the cached tier oracle. Tier lookups hit the subscription
// mirror at most once per TTL per user.
type Service struct {
	log   *zap.Logger
	repo  subscriptiondomain.Repository
	clock clock.Clock
	tiers cache.Cache[string, subscriptiondomain.Tier]
}

func New(p Params) subscriptiondomain.Oracle {
	return &Service{
		log:   p.Log.Named("subscription.oracle"),
		repo:  p.Repo,
		clock: p.Clock,
		tiers: cache.NewTTLCache[string, subscriptiondomain.Tier](),
	}
}

func (s *Service) Tier(ctx context.Context, userID string) (subscriptiondomain.Tier, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return subscriptiondomain.TierFree, subscriptiondomain.ErrInvalidUser
	}

	if tier, ok := s.tiers.Get(userID); ok {
		return tier, nil
	}

	sub, err := s.repo.FindCurrent(ctx, userID)
	if err != nil {
		return subscriptiondomain.TierFree, err
	}

	tier := subscriptiondomain.TierFree
	if sub != nil && sub.Entitled(s.clock.Now()) {
		tier = subscriptiondomain.TierPaid
	}

	s.tiers.Set(userID, tier, tierCacheTTL)
	return tier, nil
}
