package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/VoltLog/pkg/voltlog"
)

func main() {
	flow, err := voltlog.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(b voltlog.Batch) error {
		for _, r := range b.Readings {
			fmt.Printf("%s seq=%d ch=%d value=%.3f status=%s\n",
				r.Timestamp.Format(time.RFC3339Nano),
				b.Seq,
				r.ChannelID,
				r.Value,
				r.Status,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, voltlog.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
