package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/observability"
)

type Config struct {
	NATSURL    string
	StreamName string
	MaxAge     time.Duration
}

type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	cfg    Config
	logger *zap.Logger
}

func NewNATSPublisher(ctx context.Context, cfg Config, logger *zap.Logger) (*NATSPublisher, error) {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("lustra-api"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	p := &NATSPublisher{nc: nc, js: js, cfg: cfg, logger: logger}
	if err := EnsureStream(js, cfg.StreamName, cfg.MaxAge); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

func (p *NATSPublisher) JetStream() nats.JetStreamContext {
	return p.js
}

// Publish sends ev with the trace context of ctx in the message headers.
func (p *NATSPublisher) Publish(ctx context.Context, kind Kind, ev TaskEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(kind, ev.Status))
	msg.Data = b
	msg.Header.Set(nats.MsgIdHdr, fmt.Sprintf("%s:%s:%d", ev.TaskID, ev.Status, ev.At.UnixNano()))
	observability.InjectNATS(ctx, msg.Header)

	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

// EnsureStream creates the stream, or adds the task subjects to an existing one.
func EnsureStream(js nats.JetStreamContext, name string, maxAge time.Duration) error {
	desired := []string{SubjectAll}

	if info, err := js.StreamInfo(name); err == nil && info != nil {
		merged, changed := mergeSubjects(info.Config.Subjects, desired)
		if !changed {
			return nil
		}

		sc := info.Config
		sc.Subjects = merged
		sc.Name = name

		if _, err := js.UpdateStream(&sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		return nil
	}

	sc := &nats.StreamConfig{
		Name:      name,
		Subjects:  desired,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAge,
	}
	if _, err := js.AddStream(sc); err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	return nil
}

func mergeSubjects(existing, desired []string) ([]string, bool) {
	set := make(map[string]struct{}, len(existing)+len(desired))
	out := make([]string, 0, len(existing)+len(desired))

	for _, s := range existing {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}

	changed := false
	for _, s := range desired {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
		changed = true
	}

	return out, changed
}
