package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// DefaultMirrorQueueLen bounds the batches waiting for one mirror.
const DefaultMirrorQueueLen = 64

// mirrorWorker feeds one mirror from its own queue so a slow mirror only
// falls behind itself.
type mirrorWorker struct {
	mirror ports.Mirror
	obs    ports.Observability
	in     chan domain.Batch
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func startMirrorWorker(m ports.Mirror, obs ports.Observability, size int) *mirrorWorker {
	if size <= 0 {
		size = DefaultMirrorQueueLen
	}
	ctx, cancel := context.WithCancel(context.Background())
	mw := &mirrorWorker{
		mirror: m,
		obs:    obs,
		in:     make(chan domain.Batch, size),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go mw.run()
	return mw
}

// offer never blocks; a full queue drops the batch for this mirror only.
func (mw *mirrorWorker) offer(b domain.Batch) {
	select {
	case mw.in <- b:
	default:
		mw.obs.IncCounter(ports.MetricMirrorDropped, 1)
		mw.obs.LogError("mirror_queue_full",
			fmt.Errorf("%w: mirror %s has %d batches pending", ports.ErrQueueFull, mw.mirror.Name(), cap(mw.in)),
			ports.Field{Key: "mirror", Value: mw.mirror.Name()},
			ports.Field{Key: "seq", Value: b.Seq})
	}
}

func (mw *mirrorWorker) run() {
	defer close(mw.done)
	for b := range mw.in {
		ctx, cancel := context.WithTimeout(mw.ctx, mirrorTimeout)
		if err := mw.mirror.WriteBatch(ctx, b); err != nil {
			mw.obs.IncCounter(ports.MetricMirrorFailures, 1)
			mw.obs.LogError("mirror_write_failed", err,
				ports.Field{Key: "mirror", Value: mw.mirror.Name()},
				ports.Field{Key: "seq", Value: b.Seq})
		}
		cancel()
	}
}

// stop lets the worker drain for up to grace, then cancels whatever is
// still in flight and waits for it to return.
func (mw *mirrorWorker) stop(grace time.Duration) {
	close(mw.in)
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-mw.done:
	case <-timer.C:
		mw.cancel()
		<-mw.done
	}
	mw.cancel()
}
