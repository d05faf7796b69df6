package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used by all grammar tooling spans.
const TracerName = "tree-sitter-cerium"

type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is a gRPC host:port. Tracing is a no-op when empty.
	OTLPEndpoint string
	SampleRate   float64
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "cerium",
		Environment: "development",
		SampleRate:  1.0,
	}
}

type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing installs a global tracer provider exporting over OTLP/gRPC.
func InitTracing(ctx context.Context, cfg TracingConfig) (*TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartVerifySpan starts a span covering one verification run.
func StartVerifySpan(ctx context.Context, runID, grammarsPath string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "grammar.verify",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cerium.run_id", runID),
			attribute.String("cerium.grammars_path", grammarsPath),
		),
	)
}

// RecordVerifyResult marks the span failed when issues were found.
func RecordVerifyResult(span trace.Span, issueCount, driftCount int) {
	span.SetAttributes(
		attribute.Int("cerium.issue_count", issueCount),
		attribute.Int("cerium.drift_count", driftCount),
	)
	if issueCount > 0 || driftCount > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d issues, %d drifted", issueCount, driftCount))
	}
}

func StartParseSpan(ctx context.Context, language string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "grammar.parse",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("cerium.language", language)),
	)
}

func StartLoadSpan(ctx context.Context, language string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "grammar.load",
		trace.WithAttributes(attribute.String("cerium.language", language)),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
