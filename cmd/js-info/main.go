package main

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dedezza1D/lustra/internal/config"
	"github.com/dedezza1D/lustra/internal/events"
)

// js-info prints the task event stream and the consumers reading it.
func main() {
	cfg := config.Load()
	if cfg.NATSURL == "" {
		panic("NATS_URL is required")
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("lustra-js-info"), nats.Timeout(5*time.Second))
	if err != nil {
		panic(err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		panic(err)
	}

	info, err := js.StreamInfo(cfg.NATSStreamName)
	if err != nil {
		panic(fmt.Errorf("stream %q: %w", cfg.NATSStreamName, err))
	}

	fmt.Println("STREAM:", info.Config.Name)
	fmt.Println("SUBJECTS:")
	for _, s := range info.Config.Subjects {
		marker := ""
		if s == events.SubjectAll {
			marker = " (task events)"
		}
		fmt.Println(" -", s+marker)
	}
	fmt.Println("MAX AGE:", info.Config.MaxAge)
	fmt.Println("STATE:", "msgs=", info.State.Msgs, "bytes=", info.State.Bytes)

	fmt.Println("CONSUMERS:")
	for ci := range js.ConsumersInfo(cfg.NATSStreamName) {
		fmt.Printf(" - %s pending=%d ack_pending=%d redelivered=%d\n",
			ci.Name, ci.NumPending, ci.NumAckPending, ci.NumRedelivered)
	}
}
