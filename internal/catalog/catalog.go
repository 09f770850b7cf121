// Package catalog is the single source of truth for gated features and
// their tier-dependent quota policies.
package catalog

import (
	"fmt"
	"sort"
)

// Feature identifiers for the gated capabilities.
const (
	FeatureAIRecommendations = "ai_recommendations"
	FeatureSavedScholarships = "saved_scholarships"
	FeatureEssayAssistance   = "essay_assistance"
	FeatureDeadlineReminders = "deadline_reminders"
	FeatureProfileInsights   = "profile_insights"
)

// DefaultPolicies is the compiled-in policy table. A YAML override file may
// replace limits, but the feature set itself is closed.
func DefaultPolicies() []FeaturePolicy {
	return []FeaturePolicy{
		{FeatureID: FeatureAIRecommendations, FreeLimit: 5, PaidLimit: Unlimited, ResetPeriod: ResetMonthly},
		{FeatureID: FeatureSavedScholarships, FreeLimit: 10, PaidLimit: 200, ResetPeriod: ResetNever},
		{FeatureID: FeatureEssayAssistance, FreeLimit: 3, PaidLimit: 50, ResetPeriod: ResetMonthly},
		{FeatureID: FeatureDeadlineReminders, FreeLimit: 0, PaidLimit: Unlimited, ResetPeriod: ResetWeekly},
		{FeatureID: FeatureProfileInsights, FreeLimit: 1, PaidLimit: 10, ResetPeriod: ResetDaily},
	}
}

// Catalog is an immutable, validated policy table.
type Catalog struct {
	policies map[string]FeaturePolicy
}

// New builds a catalog from the given policies. Every policy is validated
// up front so that a malformed table fails at startup, not per request.
func New(policies []FeaturePolicy) (*Catalog, error) {
	table := make(map[string]FeaturePolicy, len(policies))
	for _, policy := range policies {
		if err := policy.Validate(); err != nil {
			return nil, err
		}
		if _, exists := table[policy.FeatureID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePolicy, policy.FeatureID)
		}
		table[policy.FeatureID] = policy
	}
	return &Catalog{policies: table}, nil
}

// PolicyFor returns the policy for a feature id. An unknown id is a
// configuration error, never a user-facing condition.
func (c *Catalog) PolicyFor(featureID string) (FeaturePolicy, error) {
	policy, ok := c.policies[featureID]
	if !ok {
		return FeaturePolicy{}, fmt.Errorf("%w: %s", ErrUnknownFeature, featureID)
	}
	return policy, nil
}

// Features lists the known feature ids in stable order.
func (c *Catalog) Features() []string {
	ids := make([]string, 0, len(c.policies))
	for id := range c.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
