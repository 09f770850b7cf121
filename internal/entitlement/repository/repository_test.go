package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gradpath/gradpath/internal/catalog"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the shared in-memory database visible to
	// every goroutine and serializes writes the way a server would.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&entitlementdomain.UsageRecord{}))
	return db
}

func newStore(t *testing.T) entitlementdomain.Store {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return Provide(node)
}

func TestRead_AbsentRecord(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)

	record, err := store.Read(context.Background(), db, "user-1", catalog.FeatureEssayAssistance)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestConditionalIncrement_CreatesAndStopsAtLimit(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)
	ctx := context.Background()
	windowStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		res, err := store.ConditionalIncrement(ctx, db, "user-1", catalog.FeatureEssayAssistance, 3, windowStart, catalog.ResetMonthly)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, i, res.NewCount)
	}

	res, err := store.ConditionalIncrement(ctx, db, "user-1", catalog.FeatureEssayAssistance, 3, windowStart, catalog.ResetMonthly)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, int64(3), res.NewCount)

	record, err := store.Read(ctx, db, "user-1", catalog.FeatureEssayAssistance)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(3), record.Count)
	assert.Equal(t, catalog.ResetMonthly, record.ResetPeriod)
}

func TestConditionalIncrement_ZeroLimitNeverAccepts(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)

	res, err := store.ConditionalIncrement(context.Background(), db, "user-1", catalog.FeatureDeadlineReminders, 0, time.Now().UTC(), catalog.ResetWeekly)
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	record, err := store.Read(context.Background(), db, "user-1", catalog.FeatureDeadlineReminders)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestConditionalIncrement_Unlimited(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 10; i++ {
		res, err := store.ConditionalIncrement(ctx, db, "user-1", catalog.FeatureAIRecommendations, catalog.Unlimited, time.Now().UTC(), catalog.ResetMonthly)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, i, res.NewCount)
	}
}

func TestConditionalIncrement_ConcurrentNeverOvershoots(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)
	ctx := context.Background()
	windowStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	const limit = int64(5)
	const attempts = 25

	var wg sync.WaitGroup
	accepted := make(chan bool, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.ConditionalIncrement(ctx, db, "user-1", catalog.FeatureEssayAssistance, limit, windowStart, catalog.ResetMonthly)
			if err != nil {
				accepted <- false
				return
			}
			accepted <- res.Accepted
		}()
	}
	wg.Wait()
	close(accepted)

	acceptedCount := 0
	for ok := range accepted {
		if ok {
			acceptedCount++
		}
	}
	assert.Equal(t, int(limit), acceptedCount)

	record, err := store.Read(ctx, db, "user-1", catalog.FeatureEssayAssistance)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, limit, record.Count)
}

func TestResetWindow_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)
	ctx := context.Background()
	oldStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for range 4 {
		_, err := store.ConditionalIncrement(ctx, db, "user-1", catalog.FeatureEssayAssistance, 10, oldStart, catalog.ResetMonthly)
		require.NoError(t, err)
	}

	newStart := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	record, err := store.ResetWindow(ctx, db, "user-1", catalog.FeatureEssayAssistance, newStart, catalog.ResetMonthly)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(0), record.Count)
	assert.True(t, record.WindowStart.Equal(newStart))

	read, err := store.Read(ctx, db, "user-1", catalog.FeatureEssayAssistance)
	require.NoError(t, err)
	require.NotNil(t, read)
	assert.Equal(t, int64(0), read.Count)
	assert.True(t, read.WindowStart.Equal(newStart))
}

func TestResetWindow_CreatesAbsentRecord(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)

	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	record, err := store.ResetWindow(context.Background(), db, "user-1", catalog.FeatureProfileInsights, start, catalog.ResetDaily)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(0), record.Count)
}

func TestStaleWindows(t *testing.T) {
	db := newTestDB(t)
	store := newStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// 40 days old, monthly cadence: stale.
	_, err := store.ConditionalIncrement(ctx, db, "user-stale", catalog.FeatureEssayAssistance, 10, now.AddDate(0, 0, -40), catalog.ResetMonthly)
	require.NoError(t, err)
	// Current month: fresh.
	_, err = store.ConditionalIncrement(ctx, db, "user-fresh", catalog.FeatureEssayAssistance, 10, now.AddDate(0, 0, -1), catalog.ResetMonthly)
	require.NoError(t, err)
	// Never resets, however old.
	_, err = store.ConditionalIncrement(ctx, db, "user-never", catalog.FeatureSavedScholarships, 10, now.AddDate(-1, 0, 0), catalog.ResetNever)
	require.NoError(t, err)

	stale, err := store.StaleWindows(ctx, db, now, 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "user-stale", stale[0].UserID)
}
