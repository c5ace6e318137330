package observability

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultSampleRatio = 0.1

type OTelConfig struct {
	ServiceName string
	Endpoint    string // OTLP HTTP endpoint, e.g. http://otel-collector:4318
	Env         string
	// SampleRatio applies to root spans. Zero means the default of 10%.
	SampleRatio float64
}

func propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// InitTracing configures OpenTelemetry tracing and returns the provider's shutdown func.
// Without an endpoint spans are never sampled but trace context is still propagated.
func InitTracing(ctx context.Context, cfg OTelConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "lustra-api"
	}
	otel.SetTextMapPropagator(propagator())

	if os.Getenv("OTEL_TRACES_EXPORTER") == "none" || cfg.Endpoint == "" {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	}

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithTimeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Env),
		),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, err
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = defaultSampleRatio
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartProviderCall opens a client span for one call to an external AI provider. The
// returned func ends the span and records the call duration and outcome metrics.
func StartProviderCall(ctx context.Context, provider, operation string) (context.Context, func(err error)) {
	ctx, span := otel.Tracer("lustra/providers").Start(ctx, provider+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("ai.provider", provider)),
	)
	start := time.Now()

	return ctx, func(err error) {
		AICallDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
		if err != nil {
			ObserveAIAttempt(provider, "error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider_error")
		} else {
			ObserveAIAttempt(provider, "ok")
		}
		span.End()
	}
}
