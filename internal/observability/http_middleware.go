package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
)

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok
}

// RequestIDMiddleware ensures every request has an X-Request-Id and stores it in context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// quietRoutes are health checks and scrapes; their access lines are logged at debug level.
var quietRoutes = map[string]bool{
	"/metrics":       true,
	"/api/v1/health": true,
	"/api/v1/ready":  true,
}

// AccessLogMiddleware logs one line per request with the request id and trace id.
func AccessLogMiddleware(logger *zap.Logger, routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := routeName(r)
			rid, _ := RequestIDFromContext(r.Context())
			sc := trace.SpanContextFromContext(r.Context())

			fields := []zap.Field{
				zap.String("request_id", rid),
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
				zap.String("route", route),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int64("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)),
			}

			switch {
			case rec.status >= 500:
				logger.Warn("http_request", fields...)
			case quietRoutes[route]:
				logger.Debug("http_request", fields...)
			default:
				logger.Info("http_request", fields...)
			}
		})
	}
}

// TracingMiddleware continues the caller's trace when a traceparent header is present and
// opens a server span named after the route.
func TracingMiddleware(routeName func(*http.Request) string) func(http.Handler) http.Handler {
	tr := otel.Tracer("lustra/http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := routeName(r)
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tr.Start(ctx, r.Method+" "+name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			rid, _ := RequestIDFromContext(ctx)
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", name),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request.id", rid),
			)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
			if rec.status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}

// RecoverMiddleware turns a handler panic into a 500 JSON answer and an error log line.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					rid, _ := RequestIDFromContext(r.Context())
					logger.Error("panic recovered",
						zap.String("request_id", rid),
						zap.String("path", r.URL.Path),
						zap.Any("panic", v),
						zap.Stack("stack"),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error":      "internal server error",
						"request_id": rid,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
