package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributes(t *testing.T) {
	filtered := FilterAttributes(
		attribute.String("feature_id", "ai_recommendations"),
		attribute.String("user_id", "u-123"),
		attribute.String("outcome", "accepted"),
		attribute.String("email", "student@example.com"),
	)

	assert.Len(t, filtered, 2)
	keys := make([]string, 0, len(filtered))
	for _, attr := range filtered {
		keys = append(keys, string(attr.Key))
	}
	assert.Contains(t, keys, "feature_id")
	assert.Contains(t, keys, "outcome")
	assert.NotContains(t, keys, "user_id")
	assert.NotContains(t, keys, "email")
}

func TestFilterAttributesEmpty(t *testing.T) {
	assert.Empty(t, FilterAttributes())
	assert.Empty(t, FilterAttributes(attribute.String("user_id", "u-1")))
}

func TestNilMetricsRecordIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDecision(t.Context(), "ai_recommendations", true)
		m.RecordConsume(t.Context(), "ai_recommendations", "accepted")
		m.RecordOracleFallback(t.Context())
	})
}
