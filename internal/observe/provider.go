package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ProviderConfig configures the OpenTelemetry SDK providers. Its values
// come from the caller (cmd/mcpserver fills them from its -name and
// -version flags), not from [config.Config].
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry.
	ServiceName string
	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string
	// TraceExporter is an optional span exporter; spans are recorded but
	// dropped when nil, since this server has no OTLP collector target by
	// default (spec Non-goal: no network-exposed endpoints).
	TraceExporter sdktrace.SpanExporter
}

// InitProvider wires a metric.MeterProvider backed by a Prometheus
// exporter and a trace.TracerProvider, registering both globally, and
// returns a combined shutdown function to call during server teardown.
//
// Unlike the teacher, no HTTP /metrics endpoint is started here — this
// server does not bind any listener (spec Non-goal). The Prometheus
// exporter's registry is left for a caller (e.g. a CLI diagnostic command)
// to scrape in-process if ever needed.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "workspace-server"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"https://opentelemetry.io/schemas/1.26.0",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var shutdownFuncs []func(context.Context) error

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if e := fn(ctx); e != nil {
				errs = append(errs, e)
			}
		}
		return errors.Join(errs...)
	}
	return shutdown, nil
}
