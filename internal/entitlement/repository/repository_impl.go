// Package repository implements the durable usage counter on gorm.
//
// The ceiling check in ConditionalIncrement runs inside a single
// conditional UPDATE so concurrent consumers can never push the counter
// past the limit, regardless of how many processes share the database.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gradpath/gradpath/internal/catalog"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
)

type repo struct {
	genID *snowflake.Node
}

// Provide returns the gorm-backed usage store.
func Provide(genID *snowflake.Node) entitlementdomain.Store {
	return &repo{genID: genID}
}

func (r *repo) Read(ctx context.Context, db *gorm.DB, userID, featureID string) (*entitlementdomain.UsageRecord, error) {
	var record entitlementdomain.UsageRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND feature_id = ?", userID, featureID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) ConditionalIncrement(ctx context.Context, db *gorm.DB, userID, featureID string, limit int64, windowStart time.Time, period catalog.ResetPeriod) (entitlementdomain.IncrementResult, error) {
	if limit != catalog.Unlimited && limit <= 0 {
		// A zero ceiling can never accept; skip the write entirely.
		return entitlementdomain.IncrementResult{Accepted: false}, nil
	}

	if err := r.ensureRecord(ctx, db, userID, featureID, windowStart, period); err != nil {
		return entitlementdomain.IncrementResult{}, err
	}

	now := time.Now().UTC()
	query := db.WithContext(ctx).
		Model(&entitlementdomain.UsageRecord{}).
		Where("user_id = ? AND feature_id = ?", userID, featureID)
	if limit != catalog.Unlimited {
		query = query.Where("count < ?", limit)
	}

	res := query.Updates(map[string]any{
		"count":      gorm.Expr("count + 1"),
		"updated_at": now,
	})
	if res.Error != nil {
		return entitlementdomain.IncrementResult{}, res.Error
	}

	record, err := r.Read(ctx, db, userID, featureID)
	if err != nil {
		return entitlementdomain.IncrementResult{}, err
	}
	var newCount int64
	if record != nil {
		newCount = record.Count
	}

	return entitlementdomain.IncrementResult{
		Accepted: res.RowsAffected == 1,
		NewCount: newCount,
	}, nil
}

func (r *repo) ResetWindow(ctx context.Context, db *gorm.DB, userID, featureID string, newWindowStart time.Time, period catalog.ResetPeriod) (*entitlementdomain.UsageRecord, error) {
	if err := r.ensureRecord(ctx, db, userID, featureID, newWindowStart, period); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err := db.WithContext(ctx).
		Model(&entitlementdomain.UsageRecord{}).
		Where("user_id = ? AND feature_id = ?", userID, featureID).
		Updates(map[string]any{
			"count":        0,
			"window_start": newWindowStart.UTC(),
			"reset_period": period,
			"updated_at":   now,
		}).Error
	if err != nil {
		return nil, err
	}

	return r.Read(ctx, db, userID, featureID)
}

func (r *repo) StaleWindows(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]entitlementdomain.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	startOfYear := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	weekCutoff := now.Add(-7 * 24 * time.Hour)

	var records []entitlementdomain.UsageRecord
	err := db.WithContext(ctx).
		Where(`(reset_period = ? AND window_start < ?)
			OR (reset_period = ? AND window_start <= ?)
			OR (reset_period = ? AND window_start < ?)
			OR (reset_period = ? AND window_start < ?)`,
			catalog.ResetDaily, startOfDay,
			catalog.ResetWeekly, weekCutoff,
			catalog.ResetMonthly, startOfMonth,
			catalog.ResetYearly, startOfYear,
		).
		Order("window_start ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ensureRecord lazily creates the counter row. The unique index on
// (user_id, feature_id) makes concurrent first-use creation safe.
func (r *repo) ensureRecord(ctx context.Context, db *gorm.DB, userID, featureID string, windowStart time.Time, period catalog.ResetPeriod) error {
	record := entitlementdomain.UsageRecord{
		ID:          r.genID.Generate(),
		UserID:      userID,
		FeatureID:   featureID,
		Count:       0,
		WindowStart: windowStart.UTC(),
		ResetPeriod: period,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "feature_id"}},
			DoNothing: true,
		}).
		Create(&record).Error
}
