package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ResetPeriod is the cadence at which a feature's usage window resets.
type ResetPeriod string

const (
	ResetNever   ResetPeriod = "never"
	ResetDaily   ResetPeriod = "daily"
	ResetWeekly  ResetPeriod = "weekly"
	ResetMonthly ResetPeriod = "monthly"
	ResetYearly  ResetPeriod = "yearly"
)

// Unlimited marks a limit with no ceiling.
const Unlimited int64 = -1

var (
	ErrUnknownFeature  = errors.New("unknown_feature")
	ErrInvalidPolicy   = errors.New("invalid_policy")
	ErrDuplicatePolicy = errors.New("duplicate_policy")
)

// FeaturePolicy defines the tier-dependent limits for one gated capability.
type FeaturePolicy struct {
	FeatureID   string      `mapstructure:"feature_id" json:"feature_id"`
	FreeLimit   int64       `mapstructure:"free_limit" json:"free_limit"`
	PaidLimit   int64       `mapstructure:"paid_limit" json:"paid_limit"`
	ResetPeriod ResetPeriod `mapstructure:"reset_period" json:"reset_period"`
}

// PaidUnlimited reports whether the paid tier has no ceiling for this feature.
func (p FeaturePolicy) PaidUnlimited() bool { return p.PaidLimit == Unlimited }

// Validate checks the policy invariants: a finite non-negative free limit and
// a paid limit that is either unlimited or at least the free limit.
func (p FeaturePolicy) Validate() error {
	id := strings.TrimSpace(p.FeatureID)
	if id == "" {
		return fmt.Errorf("%w: empty feature id", ErrInvalidPolicy)
	}
	if p.FreeLimit < 0 {
		return fmt.Errorf("%w: %s: free limit must be non-negative", ErrInvalidPolicy, id)
	}
	if p.PaidLimit != Unlimited && p.PaidLimit < p.FreeLimit {
		return fmt.Errorf("%w: %s: paid limit below free limit", ErrInvalidPolicy, id)
	}
	if !validResetPeriod(p.ResetPeriod) {
		return fmt.Errorf("%w: %s: unknown reset period %q", ErrInvalidPolicy, id, p.ResetPeriod)
	}
	return nil
}

func validResetPeriod(period ResetPeriod) bool {
	switch period {
	case ResetNever, ResetDaily, ResetWeekly, ResetMonthly, ResetYearly:
		return true
	default:
		return false
	}
}
