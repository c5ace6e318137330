package observability

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// NATSHeaderCarrier adapts nats.Header to the OpenTelemetry TextMapCarrier interface.
type NATSHeaderCarrier struct {
	H nats.Header
}

func (c NATSHeaderCarrier) Get(key string) string {
	return c.H.Get(key)
}

func (c NATSHeaderCarrier) Set(key string, value string) {
	c.H.Set(key, value)
}

func (c NATSHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.H))
	for k := range c.H {
		keys = append(keys, k)
	}
	return keys
}

// InjectNATS writes the span context of ctx into h.
func InjectNATS(ctx context.Context, h nats.Header) {
	otel.GetTextMapPropagator().Inject(ctx, NATSHeaderCarrier{H: h})
}

// ExtractNATS returns ctx enriched with the span context carried by h.
func ExtractNATS(ctx context.Context, h nats.Header) context.Context {
	if h == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, NATSHeaderCarrier{H: h})
}
