// Package observe provides the workspace server's observability
// primitives: OpenTelemetry metrics, tracing, and trace-enriched
// structured logging, wired the way the teacher's internal/observe
// package is wired — a package-level default instance backed by the
// global OTel providers, with [NewMetrics] available for tests that want
// an isolated [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/cursorcli-mcp/workspace-server"

// durationBuckets are histogram bucket boundaries, in seconds, sized for
// sub-second tool calls rather than the teacher's voice-pipeline range.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds every OpenTelemetry instrument this server reports to. It
// satisfies [executor.Metrics] and is also used directly by
// internal/server for the config-reload counter.
type Metrics struct {
	ToolCallDuration metric.Float64Histogram
	ToolCalls        metric.Int64Counter
	InFlightTools    metric.Int64UpDownCounter

	ConfigReloads      metric.Int64Counter
	ConfigReloadErrors metric.Int64Counter

	SandboxViolations metric.Int64Counter
}

// NewMetrics creates a fully initialized [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.ToolCallDuration, err = m.Float64Histogram("workspace_server.tool_call.duration",
		metric.WithDescription("Latency of tool execution, from admission to completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("workspace_server.tool_call.count",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.InFlightTools, err = m.Int64UpDownCounter("workspace_server.tool_call.in_flight",
		metric.WithDescription("Number of tool calls currently executing."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("workspace_server.config.reloads",
		metric.WithDescription("Total successful config reloads."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloadErrors, err = m.Int64Counter("workspace_server.config.reload_errors",
		metric.WithDescription("Total config reload attempts that failed validation or load."),
	); err != nil {
		return nil, err
	}
	if met.SandboxViolations, err = m.Int64Counter("workspace_server.sandbox.violations",
		metric.WithDescription("Total path sandbox rejections by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, built
// lazily from [otel.GetMeterProvider]. Panics if instrument creation
// fails, which should not happen against the global provider.
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

// RecordToolCall satisfies [executor.Metrics].
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
}

// RecordToolDuration satisfies [executor.Metrics].
func (m *Metrics) RecordToolDuration(ctx context.Context, tool string, seconds float64) {
	m.ToolCallDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("tool", tool)))
}

// SetInFlight satisfies [executor.Metrics].
func (m *Metrics) SetInFlight(ctx context.Context, delta int64) {
	m.InFlightTools.Add(ctx, delta)
}

// RecordConfigReload records a successful or failed hot-reload attempt.
func (m *Metrics) RecordConfigReload(ctx context.Context, ok bool) {
	if ok {
		m.ConfigReloads.Add(ctx, 1)
		return
	}
	m.ConfigReloadErrors.Add(ctx, 1)
}

// RecordSandboxViolation records a rejected path by [mcperr.Kind].
func (m *Metrics) RecordSandboxViolation(ctx context.Context, kind string) {
	m.SandboxViolations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
