package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	decisions       metric.Int64Counter
	consumes        metric.Int64Counter
	windowResets    metric.Int64Counter
	oracleFallbacks metric.Int64Counter
	storeFailures   metric.Int64Counter
	rateLimitDenied metric.Int64Counter
	unlimitedUsage  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "gradpath"
	}
	meter := provider.Meter(name)

	decisions, err := meter.Int64Counter("gradpath_entitlement_decisions_total")
	if err != nil {
		return nil, err
	}
	consumes, err := meter.Int64Counter("gradpath_entitlement_consumes_total")
	if err != nil {
		return nil, err
	}
	windowResets, err := meter.Int64Counter("gradpath_entitlement_window_resets_total")
	if err != nil {
		return nil, err
	}
	oracleFallbacks, err := meter.Int64Counter("gradpath_tier_oracle_fallbacks_total")
	if err != nil {
		return nil, err
	}
	storeFailures, err := meter.Int64Counter("gradpath_usage_store_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("gradpath_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	unlimitedUsage, err := meter.Int64Counter("gradpath_unlimited_usage_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		decisions:       decisions,
		consumes:        consumes,
		windowResets:    windowResets,
		oracleFallbacks: oracleFallbacks,
		storeFailures:   storeFailures,
		rateLimitDenied: rateLimitDenied,
		unlimitedUsage:  unlimitedUsage,
	}, nil
}

// RecordDecision counts an evaluate result.
func (m *Metrics) RecordDecision(ctx context.Context, featureID string, allowed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature_id", strings.TrimSpace(featureID)),
		attribute.Bool("allowed", allowed),
	)
	m.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConsume counts a consume outcome.
func (m *Metrics) RecordConsume(ctx context.Context, featureID, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature_id", strings.TrimSpace(featureID)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.consumes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWindowReset counts a window rollover, split by origin
// ("consume" or "sweep").
func (m *Metrics) RecordWindowReset(ctx context.Context, featureID, origin string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature_id", strings.TrimSpace(featureID)),
		attribute.String("origin", strings.TrimSpace(origin)),
	)
	m.windowResets.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOracleFallback counts tier lookups that fell back to the free tier.
func (m *Metrics) RecordOracleFallback(ctx context.Context) {
	if m == nil {
		return
	}
	m.oracleFallbacks.Add(ctx, 1)
}

// RecordStoreFailure counts durable store errors, split by operation.
func (m *Metrics) RecordStoreFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.storeFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied counts consume requests rejected by the token bucket.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, featureID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature_id", strings.TrimSpace(featureID)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUnlimitedUsage counts uses that bypassed metering on an unlimited tier.
func (m *Metrics) RecordUnlimitedUsage(ctx context.Context, featureID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature_id", strings.TrimSpace(featureID)))
	m.unlimitedUsage.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// allowedLabelKeys is the closed set of metric labels. User identifiers
// are excluded to keep cardinality bounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"feature_id":  {},
	"allowed":     {},
	"outcome":     {},
	"origin":      {},
	"operation":   {},
	"tier":        {},
	"status_code": {},
	"endpoint":    {},
}

// FilterAttributes drops any attribute not in the allow list.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
