package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gradpath/gradpath/internal/catalog"
)

func ts(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNeedsReset(t *testing.T) {
	cases := []struct {
		name        string
		now         string
		windowStart string
		period      catalog.ResetPeriod
		want        bool
	}{
		{"never: same instant", "2025-06-15T12:00:00Z", "2025-06-15T12:00:00Z", catalog.ResetNever, false},
		{"never: years apart", "2027-06-15T12:00:00Z", "2025-06-15T12:00:00Z", catalog.ResetNever, false},

		{"daily: same day", "2025-06-15T23:59:59Z", "2025-06-15T00:00:01Z", catalog.ResetDaily, false},
		{"daily: next calendar day minutes later", "2025-06-16T00:00:05Z", "2025-06-15T23:59:00Z", catalog.ResetDaily, true},
		{"daily: same day different months elapsed", "2025-07-15T10:00:00Z", "2025-06-15T10:00:00Z", catalog.ResetDaily, true},

		{"weekly: six days rolling", "2025-06-21T11:59:59Z", "2025-06-15T12:00:00Z", catalog.ResetWeekly, false},
		{"weekly: exactly seven days", "2025-06-22T12:00:00Z", "2025-06-15T12:00:00Z", catalog.ResetWeekly, true},
		{"weekly: crosses calendar week but under 7d", "2025-06-16T08:00:00Z", "2025-06-14T08:00:00Z", catalog.ResetWeekly, false},

		{"monthly: same month", "2025-06-30T23:00:00Z", "2025-06-01T00:00:00Z", catalog.ResetMonthly, false},
		{"monthly: next month one second in", "2025-07-01T00:00:01Z", "2025-06-30T23:59:59Z", catalog.ResetMonthly, true},
		{"monthly: same month next year", "2026-06-10T00:00:00Z", "2025-06-20T00:00:00Z", catalog.ResetMonthly, true},

		{"yearly: same year", "2025-12-31T23:59:59Z", "2025-01-01T00:00:00Z", catalog.ResetYearly, false},
		{"yearly: year boundary", "2026-01-01T00:00:01Z", "2025-12-31T23:59:59Z", catalog.ResetYearly, true},

		{"skew: now before windowStart daily", "2025-06-14T12:00:00Z", "2025-06-15T12:00:00Z", catalog.ResetDaily, false},
		{"skew: now before windowStart monthly", "2025-05-15T12:00:00Z", "2025-06-15T12:00:00Z", catalog.ResetMonthly, false},
		{"skew: now before windowStart yearly", "2024-06-15T12:00:00Z", "2025-06-15T12:00:00Z", catalog.ResetYearly, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NeedsReset(ts(tc.now), ts(tc.windowStart), tc.period)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextWindowStart(t *testing.T) {
	now := ts("2025-06-15T10:30:00Z")
	start := ts("2025-06-12T08:00:00Z")

	t.Run("never", func(t *testing.T) {
		assert.True(t, NextWindowStart(now, start, catalog.ResetNever).IsZero())
	})

	t.Run("daily", func(t *testing.T) {
		assert.Equal(t, ts("2025-06-16T00:00:00Z"), NextWindowStart(now, start, catalog.ResetDaily))
	})

	t.Run("weekly anchors to window start", func(t *testing.T) {
		assert.Equal(t, ts("2025-06-19T08:00:00Z"), NextWindowStart(now, start, catalog.ResetWeekly))
	})

	t.Run("weekly skips past boundaries already elapsed", func(t *testing.T) {
		old := ts("2025-05-01T08:00:00Z")
		next := NextWindowStart(now, old, catalog.ResetWeekly)
		assert.True(t, next.After(now))
		assert.Equal(t, ts("2025-06-19T08:00:00Z"), next)
	})

	t.Run("monthly", func(t *testing.T) {
		assert.Equal(t, ts("2025-07-01T00:00:00Z"), NextWindowStart(now, start, catalog.ResetMonthly))
	})

	t.Run("monthly december rolls year", func(t *testing.T) {
		dec := ts("2025-12-20T10:00:00Z")
		assert.Equal(t, ts("2026-01-01T00:00:00Z"), NextWindowStart(dec, dec, catalog.ResetMonthly))
	})

	t.Run("yearly", func(t *testing.T) {
		assert.Equal(t, ts("2026-01-01T00:00:00Z"), NextWindowStart(now, start, catalog.ResetYearly))
	})
}
