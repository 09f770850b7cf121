package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gradpath/gradpath/internal/catalog"
	"github.com/gradpath/gradpath/internal/clock"
	"github.com/gradpath/gradpath/internal/config"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
	"github.com/gradpath/gradpath/internal/entitlement/window"
	"github.com/gradpath/gradpath/internal/observability/metrics"
	subscriptiondomain "github.com/gradpath/gradpath/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Catalog *catalog.Holder
	Store   entitlementdomain.Store
	Cache   entitlementdomain.Cache
	Oracle  subscriptiondomain.Oracle
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

// Service gates feature access against the policy catalog and meters
// consumption through the durable usage store. The cache is a read-side
// convenience only: every consume round-trips to the store.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	catalog *catalog.Holder
	store   entitlementdomain.Store
	cache   entitlementdomain.Cache
	oracle  subscriptiondomain.Oracle
	clock   clock.Clock
	metrics *metrics.Metrics

	storeTimeout time.Duration
	freshFor     time.Duration
}

func New(p Params) entitlementdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("entitlement.service"),
		catalog:      p.Catalog,
		store:        p.Store,
		cache:        p.Cache,
		oracle:       p.Oracle,
		clock:        p.Clock,
		metrics:      p.Metrics,
		storeTimeout: p.Config.StoreTimeout,
		freshFor:     p.Config.CacheFreshFor,
	}
}

func (s *Service) Evaluate(ctx context.Context, userID, featureID string) (entitlementdomain.Decision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entitlementdomain.Decision{}, entitlementdomain.ErrInvalidUser
	}

	policy, err := s.catalog.Get().PolicyFor(featureID)
	if err != nil {
		return entitlementdomain.Decision{}, err
	}

	tier := s.resolveTier(ctx, userID)
	if tier == subscriptiondomain.TierPaid && policy.PaidUnlimited() {
		decision := entitlementdomain.Decision{
			Allowed:   true,
			Unlimited: true,
			Limit:     catalog.Unlimited,
			Remaining: catalog.Unlimited,
		}
		s.recordDecision(ctx, policy.FeatureID, decision.Allowed)
		return decision, nil
	}

	limit := limitFor(policy, tier)
	now := s.clock.Now().UTC()

	record, stale, err := s.readUsage(ctx, userID, policy.FeatureID)
	if err != nil {
		// No durable record and no cached snapshot: deny rather than
		// guess, the caller can retry.
		decision := entitlementdomain.Decision{Allowed: false, Limit: limit, Remaining: 0}
		s.recordDecision(ctx, policy.FeatureID, false)
		return decision, nil
	}

	count := int64(0)
	windowStart := now
	if record != nil {
		count = record.Count
		windowStart = record.WindowStart
		if window.NeedsReset(now, record.WindowStart, policy.ResetPeriod) {
			// The durable reset happens lazily on the next consume;
			// the decision just treats the window as fresh.
			count = 0
			windowStart = now
		}
	}

	decision := entitlementdomain.Decision{
		Allowed:   limit > 0 && count < limit,
		Limit:     limit,
		Remaining: remaining(limit, count),
		Stale:     stale,
	}
	if resetAt := window.NextWindowStart(now, windowStart, policy.ResetPeriod); !resetAt.IsZero() {
		decision.ResetAt = &resetAt
	}

	s.recordDecision(ctx, policy.FeatureID, decision.Allowed)
	return decision, nil
}

func (s *Service) Consume(ctx context.Context, userID, featureID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, entitlementdomain.ErrInvalidUser
	}

	policy, err := s.catalog.Get().PolicyFor(featureID)
	if err != nil {
		return false, err
	}

	tier := s.resolveTier(ctx, userID)
	if tier == subscriptiondomain.TierPaid && policy.PaidUnlimited() {
		if s.metrics != nil {
			s.metrics.RecordUnlimitedUsage(ctx, policy.FeatureID)
		}
		s.recordConsume(ctx, policy.FeatureID, "unlimited")
		return true, nil
	}

	limit := limitFor(policy, tier)
	if limit <= 0 && limit != catalog.Unlimited {
		s.recordConsume(ctx, policy.FeatureID, "denied")
		return false, nil
	}

	now := s.clock.Now().UTC()
	windowStart := now

	record, err := s.readDurable(ctx, userID, policy.FeatureID)
	if err != nil {
		s.recordStoreFailure(ctx, "read")
		s.recordConsume(ctx, policy.FeatureID, "failed")
		return false, fmt.Errorf("%w: %v", entitlementdomain.ErrStoreUnavailable, err)
	}
	if record != nil {
		windowStart = record.WindowStart
		if window.NeedsReset(now, record.WindowStart, policy.ResetPeriod) {
			if _, err := s.resetWindow(ctx, userID, policy.FeatureID, now, policy.ResetPeriod); err != nil {
				s.recordStoreFailure(ctx, "reset_window")
				s.recordConsume(ctx, policy.FeatureID, "failed")
				return false, fmt.Errorf("%w: %v", entitlementdomain.ErrStoreUnavailable, err)
			}
			windowStart = now
			s.cache.Invalidate(ctx, userID, policy.FeatureID)
			if s.metrics != nil {
				s.metrics.RecordWindowReset(ctx, policy.FeatureID, "consume")
			}
		}
	}

	result, err := s.increment(ctx, userID, policy.FeatureID, limit, windowStart, policy.ResetPeriod)
	if err != nil {
		s.recordStoreFailure(ctx, "conditional_increment")
		s.recordConsume(ctx, policy.FeatureID, "failed")
		return false, fmt.Errorf("%w: %v", entitlementdomain.ErrStoreUnavailable, err)
	}

	if result.Accepted {
		s.cache.Put(ctx, userID, policy.FeatureID, entitlementdomain.UsageRecord{
			UserID:      userID,
			FeatureID:   policy.FeatureID,
			Count:       result.NewCount,
			WindowStart: windowStart,
			ResetPeriod: policy.ResetPeriod,
			UpdatedAt:   now,
		})
		s.recordConsume(ctx, policy.FeatureID, "accepted")
		return true, nil
	}

	s.recordConsume(ctx, policy.FeatureID, "denied")
	return false, nil
}

func (s *Service) GetUsage(ctx context.Context, userID, featureID string) (*entitlementdomain.UsageRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUser
	}

	if _, err := s.catalog.Get().PolicyFor(featureID); err != nil {
		return nil, err
	}

	record, err := s.readDurable(ctx, userID, featureID)
	if err != nil {
		s.recordStoreFailure(ctx, "read")
		return nil, fmt.Errorf("%w: %v", entitlementdomain.ErrStoreUnavailable, err)
	}
	return record, nil
}

// resolveTier asks the oracle, falling back to the free tier on failure.
// It never guesses paid.
func (s *Service) resolveTier(ctx context.Context, userID string) subscriptiondomain.Tier {
	tier, err := s.oracle.Tier(ctx, userID)
	if err != nil {
		s.log.Warn("tier lookup failed, treating user as free tier",
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.RecordOracleFallback(ctx)
		}
		return subscriptiondomain.TierFree
	}
	return tier
}

// readUsage serves the cached snapshot while it is fresh, then falls back
// to the durable store. When the store is unreachable a stale snapshot is
// still served, flagged as such; with no snapshot at all it returns the
// store error.
func (s *Service) readUsage(ctx context.Context, userID, featureID string) (*entitlementdomain.UsageRecord, bool, error) {
	cached, ok := s.cache.Get(ctx, userID, featureID)
	if ok && s.clock.Now().Sub(cached.FetchedAt) < s.freshFor {
		record := cached.Record
		return &record, false, nil
	}

	record, err := s.readDurable(ctx, userID, featureID)
	if err != nil {
		s.recordStoreFailure(ctx, "read")
		if ok {
			s.log.Warn("usage store unreachable, serving stale cache",
				zap.String("feature_id", featureID),
				zap.Error(err),
			)
			record := cached.Record
			return &record, true, nil
		}
		return nil, false, err
	}

	if record != nil {
		s.cache.Put(ctx, userID, featureID, *record)
	}
	return record, false, nil
}

func (s *Service) readDurable(ctx context.Context, userID, featureID string) (*entitlementdomain.UsageRecord, error) {
	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	return s.store.Read(ctx, s.db, userID, featureID)
}

func (s *Service) increment(ctx context.Context, userID, featureID string, limit int64, windowStart time.Time, period catalog.ResetPeriod) (entitlementdomain.IncrementResult, error) {
	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	return s.store.ConditionalIncrement(ctx, s.db, userID, featureID, limit, windowStart, period)
}

func (s *Service) resetWindow(ctx context.Context, userID, featureID string, newStart time.Time, period catalog.ResetPeriod) (*entitlementdomain.UsageRecord, error) {
	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	return s.store.ResetWindow(ctx, s.db, userID, featureID, newStart, period)
}

func (s *Service) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *Service) recordDecision(ctx context.Context, featureID string, allowed bool) {
	if s.metrics != nil {
		s.metrics.RecordDecision(ctx, featureID, allowed)
	}
}

func (s *Service) recordConsume(ctx context.Context, featureID, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordConsume(ctx, featureID, outcome)
	}
}

func (s *Service) recordStoreFailure(ctx context.Context, operation string) {
	if s.metrics != nil {
		s.metrics.RecordStoreFailure(ctx, operation)
	}
}

func limitFor(policy catalog.FeaturePolicy, tier subscriptiondomain.Tier) int64 {
	if tier == subscriptiondomain.TierPaid {
		return policy.PaidLimit
	}
	return policy.FreeLimit
}

func remaining(limit, count int64) int64 {
	if limit == catalog.Unlimited {
		return catalog.Unlimited
	}
	if count >= limit {
		return 0
	}
	return limit - count
}
