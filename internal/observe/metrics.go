// Package observe provides application-wide observability primitives for
// funcall: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all funcall metrics.
const meterName = "github.com/MrWong99/funcall"

// Policy decision attribute values.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// LLMDuration tracks chat completion latency.
	LLMDuration metric.Float64Histogram

	// ImageDuration tracks image generation latency.
	ImageDuration metric.Float64Histogram

	// ToolExecutionDuration tracks tool execution latency, policy check included.
	ToolExecutionDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ToolsInFlight tracks tool calls currently executing.
	ToolsInFlight metric.Int64UpDownCounter

	// PolicyDecisions counts policy filter outcomes. Use with attributes:
	//   attribute.String("function", ...), attribute.String("decision", ...), attribute.String("guard", ...)
	PolicyDecisions metric.Int64Counter

	// PolicyAlerts counts advisory alerts raised by non-blocking guards.
	PolicyAlerts metric.Int64Counter

	// ChatRounds records how many model round trips a single prompt needed.
	ChatRounds metric.Int64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote model and tool calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("funcall.llm.duration",
		metric.WithDescription("Latency of chat completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ImageDuration, err = m.Float64Histogram("funcall.image.duration",
		metric.WithDescription("Latency of image generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("funcall.tool_execution.duration",
		metric.WithDescription("Latency of tool execution including the policy check."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("funcall.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("funcall.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("funcall.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolsInFlight, err = m.Int64UpDownCounter("funcall.tool.in_flight",
		metric.WithDescription("Tool calls currently executing."),
	); err != nil {
		return nil, err
	}
	if met.PolicyDecisions, err = m.Int64Counter("funcall.policy.decisions",
		metric.WithDescription("Policy filter outcomes by function, decision, and guard."),
	); err != nil {
		return nil, err
	}
	if met.PolicyAlerts, err = m.Int64Counter("funcall.policy.alerts",
		metric.WithDescription("Advisory policy alerts by function and guard."),
	); err != nil {
		return nil, err
	}
	if met.ChatRounds, err = m.Int64Histogram("funcall.chat.rounds",
		metric.WithDescription("Model round trips per prompt."),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 6, 8),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("funcall.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordToolCall records a tool call counter increment. status is one of
// "ok", "error" or "denied".
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordPolicyDecision records one filter outcome. guard is empty for allowed
// invocations.
func (m *Metrics) RecordPolicyDecision(ctx context.Context, function, decision, guard string) {
	m.PolicyDecisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("function", function),
			attribute.String("decision", decision),
			attribute.String("guard", guard),
		),
	)
}

// RecordPolicyAlert records an advisory alert.
func (m *Metrics) RecordPolicyAlert(ctx context.Context, function, guard string) {
	m.PolicyAlerts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("function", function),
			attribute.String("guard", guard),
		),
	)
}
