// Package reconciler converges durable usage records whose quota window
// has elapsed. Consume resets windows lazily for active users; the sweep
// catches dormant records so remaining-quota displays do not show an
// exhausted window from a previous period. On any divergence between
// cache and store the durable record wins.
package reconciler

import (
	"context"
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
	"github.com/gradpath/gradpath/internal/ratelimit"
)

const sweepLeaseName = "reconciler:sweep"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Catalog *catalog.Holder
	Store   entitlementdomain.Store
	Cache   entitlementdomain.Cache
	Clock   clock.Clock
	Locker  *ratelimit.Locker `optional:"true"`
	Metrics *metrics.Metrics  `optional:"true"`
}

type Reconciler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.ReconcilerConfig
	catalog *catalog.Holder
	store   entitlementdomain.Store
	cache   entitlementdomain.Cache
	clock   clock.Clock
	locker  *ratelimit.Locker
	metrics *metrics.Metrics
}

func New(p Params) *Reconciler {
	return &Reconciler{
		db:      p.DB,
		log:     p.Log.Named("entitlement.reconciler"),
		cfg:     p.Config.Reconciler,
		catalog: p.Catalog,
		store:   p.Store,
		cache:   p.Cache,
		clock:   p.Clock,
		locker:  p.Locker,
		metrics: p.Metrics,
	}
}

// RunForever sweeps on a fixed interval until the context is cancelled.
func (r *Reconciler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if swept, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("sweep failed", zap.Error(err))
		} else if swept > 0 {
			r.log.Info("sweep completed", zap.Int("windows_reset", swept))
		}
	}
}

// RunOnce performs a single sweep and reports how many windows were
// reset. When a redis locker is configured, only the replica holding the
// lease sweeps; the rest skip silently.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	if r.locker != nil {
		lease, err := r.locker.Acquire(ctx, sweepLeaseName, r.cfg.LeaseTTL)
		if err != nil {
			return 0, err
		}
		if lease == nil {
			return 0, nil
		}
		defer func() {
			if err := lease.Release(ctx); err != nil {
				r.log.Debug("lease release failed", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.SweepTimeout)
	defer cancel()

	now := r.clock.Now().UTC()
	records, err := r.store.StaleWindows(ctx, r.db, now, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, record := range records {
		period := r.periodFor(record)
		if !window.NeedsReset(now, record.WindowStart, period) {
			continue
		}
		if _, err := r.store.ResetWindow(ctx, r.db, record.UserID, record.FeatureID, now, period); err != nil {
			r.log.Warn("window reset failed",
				zap.String("feature_id", record.FeatureID),
				zap.Error(err),
			)
			continue
		}
		r.cache.Invalidate(ctx, record.UserID, record.FeatureID)
		if r.metrics != nil {
			r.metrics.RecordWindowReset(ctx, record.FeatureID, "sweep")
		}
		swept++
	}
	return swept, nil
}

// periodFor prefers the catalog's current cadence over the snapshot
// stored on the record, so a policy change takes effect without waiting
// for every record to be rewritten.
func (r *Reconciler) periodFor(record entitlementdomain.UsageRecord) catalog.ResetPeriod {
	if policy, err := r.catalog.Get().PolicyFor(record.FeatureID); err == nil {
		return policy.ResetPeriod
	}
	return record.ResetPeriod
}
