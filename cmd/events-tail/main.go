package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/config"
	"github.com/dedezza1D/lustra/internal/events"
	"github.com/dedezza1D/lustra/internal/logging"
	"github.com/dedezza1D/lustra/internal/observability"
)

func main() {
	var (
		durable = flag.String("durable", "events-tail", "JetStream durable consumer name")
		subject = flag.String("subject", events.SubjectAll, "subject filter")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.NATSURL == "" {
		panic("NATS_URL is required")
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Console: cfg.Env == "dev"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("lustra-events-tail"), nats.Timeout(5*time.Second))
	if err != nil {
		logger.Fatal("nats connection failed", zap.Error(err))
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("jetstream init failed", zap.Error(err))
	}
	if err := events.EnsureStream(js, cfg.NATSStreamName, 7*24*time.Hour); err != nil {
		logger.Fatal("ensure stream failed", zap.Error(err))
	}

	sub, err := js.PullSubscribe(*subject, *durable,
		nats.BindStream(cfg.NATSStreamName),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		logger.Fatal("pull subscribe failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("listening for task events", zap.String("subject", *subject), zap.String("stream", cfg.NATSStreamName))

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Fatal("fetch failed", zap.Error(err))
		}

		for _, m := range msgs {
			logEvent(ctx, logger, m)
			_ = m.Ack()
		}
	}

	logger.Info("events tail stopped")
}

func logEvent(ctx context.Context, logger *zap.Logger, m *nats.Msg) {
	var ev events.TaskEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		logger.Error("bad task event JSON", zap.String("subject", m.Subject), zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("subject", m.Subject),
		zap.String("task_id", ev.TaskID),
		zap.String("status", string(ev.Status)),
		zap.Time("at", ev.At),
	}
	if ev.ProviderTaskID != "" {
		fields = append(fields, zap.String("provider_task_id", ev.ProviderTaskID))
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	if sc := trace.SpanContextFromContext(observability.ExtractNATS(ctx, m.Header)); sc.IsValid() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	logger.Info("task event", fields...)
}
