package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/config"
	"github.com/dedezza1D/lustra/internal/events"
	"github.com/dedezza1D/lustra/internal/store"
)

// nats-pub publishes synthetic task events, for exercising events-tail and downstream consumers.
func main() {
	var (
		taskID   = flag.String("task-id", "", "Task id to publish for")
		kind     = flag.String("kind", string(events.KindCallback), "Event kind (submitted|callback|failed)")
		status   = flag.String("status", string(store.StatusCompleted), "Task status")
		count    = flag.Int("count", 1, "How many events to publish")
		interval = flag.Duration("interval", 50*time.Millisecond, "Delay between publishes")
	)
	flag.Parse()

	if *taskID == "" {
		panic("missing --task-id")
	}
	if *count <= 0 {
		panic("--count must be > 0")
	}

	cfg := config.Load()
	if cfg.NATSURL == "" {
		panic("NATS_URL is required")
	}

	pub, err := events.NewNATSPublisher(context.Background(), events.Config{
		NATSURL:    cfg.NATSURL,
		StreamName: cfg.NATSStreamName,
	}, zap.NewNop())
	if err != nil {
		panic(err)
	}
	defer pub.Close()

	k := events.Kind(*kind)
	st := store.NormalizeStatus(*status)
	fmt.Printf("publishing %d event(s) to %s for %s\n", *count, events.Subject(k, st), *taskID)

	for i := 0; i < *count; i++ {
		ev := events.TaskEvent{TaskID: *taskID, Status: st, At: time.Now().UTC()}
		if err := pub.Publish(context.Background(), k, ev); err != nil {
			panic(err)
		}
		time.Sleep(*interval)
	}

	fmt.Println("done")
}
