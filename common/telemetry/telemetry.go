// Package telemetry wires the process-wide OpenTelemetry tracer provider
// used by otelgin and the failover executor to annotate the request
// pipeline with spans. Shipping those spans to a collector (Grafana sync)
// is an out-of-scope admin concern; this package only makes spans exist so
// an operator can attach an exporter of their choice later.
package telemetry

import (
	"context"

	"github.com/Laisky/zap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/laiskygw/llm-gateway/common/logger"
)

// ProviderBundle holds the tracer provider so it can be shut down gracefully.
type ProviderBundle struct {
	tracerProvider *sdktrace.TracerProvider
}

// Init installs a process-wide TracerProvider. Spans are created and
// sampled in-process; no exporter is attached by default.
func Init(ctx context.Context, serviceName string) (*ProviderBundle, error) {
	res, err := sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithProcess(),
		sdkresource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		res = sdkresource.Default()
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	logger.Logger.Info("tracer provider initialized", zap.String("service", serviceName))
	return &ProviderBundle{tracerProvider: tp}, nil
}

// Shutdown drains the tracer provider.
func (p *ProviderBundle) Shutdown(ctx context.Context) error {
	if p == nil || p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}
