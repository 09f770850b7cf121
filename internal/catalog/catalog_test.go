package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsAreValid(t *testing.T) {
	cat, err := New(DefaultPolicies())
	require.NoError(t, err)
	assert.Len(t, cat.Features(), len(DefaultPolicies()))
}

func TestPolicyFor_KnownFeature(t *testing.T) {
	cat, err := New(DefaultPolicies())
	require.NoError(t, err)

	policy, err := cat.PolicyFor(FeatureAIRecommendations)
	require.NoError(t, err)
	assert.Equal(t, int64(5), policy.FreeLimit)
	assert.True(t, policy.PaidUnlimited())
	assert.Equal(t, ResetMonthly, policy.ResetPeriod)
}

func TestPolicyFor_UnknownFeature(t *testing.T) {
	cat, err := New(DefaultPolicies())
	require.NoError(t, err)

	_, err = cat.PolicyFor("does_not_exist")
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestNew_RejectsInvalidPolicies(t *testing.T) {
	cases := []struct {
		name   string
		policy FeaturePolicy
	}{
		{"empty id", FeaturePolicy{FeatureID: "", FreeLimit: 1, PaidLimit: 2, ResetPeriod: ResetDaily}},
		{"negative free limit", FeaturePolicy{FeatureID: "f", FreeLimit: -1, PaidLimit: 2, ResetPeriod: ResetDaily}},
		{"paid below free", FeaturePolicy{FeatureID: "f", FreeLimit: 5, PaidLimit: 3, ResetPeriod: ResetDaily}},
		{"unknown period", FeaturePolicy{FeatureID: "f", FreeLimit: 1, PaidLimit: 2, ResetPeriod: "fortnightly"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New([]FeaturePolicy{tc.policy})
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	policies := []FeaturePolicy{
		{FeatureID: "f", FreeLimit: 1, PaidLimit: 2, ResetPeriod: ResetDaily},
		{FeatureID: "f", FreeLimit: 3, PaidLimit: 4, ResetPeriod: ResetDaily},
	}
	_, err := New(policies)
	assert.ErrorIs(t, err, ErrDuplicatePolicy)
}

func TestValidate_UnlimitedPaidWithZeroFree(t *testing.T) {
	policy := FeaturePolicy{FeatureID: "f", FreeLimit: 0, PaidLimit: Unlimited, ResetPeriod: ResetWeekly}
	assert.NoError(t, policy.Validate())
}
