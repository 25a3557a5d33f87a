package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/VoltLog"
)

func main() {
	flow, err := voltlog.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror, batches, closeBatches := voltlog.NewChannelMirror("alarms", 32)
	defer closeBatches()

	go thresholdWatcher(3.0, batches)

	if err := flow.Run(ctx, voltlog.StreamOutMirror(mirror)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// thresholdWatcher prints every ok reading above limit volts.
func thresholdWatcher(limit float64, batches <-chan voltlog.Batch) {
	for b := range batches {
		for _, r := range b.Readings {
			if r.Status == voltlog.StatusOK && r.Value > limit {
				fmt.Printf("ch%d at %.3f V exceeds %.1f V (%s)\n", r.ChannelID, r.Value, limit, r.Timestamp)
			}
		}
	}
}
