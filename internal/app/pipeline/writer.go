package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

const (
	DefaultDegradedAfter = 3
	mirrorTimeout        = 5 * time.Second
)

// Writer drains the batch queue into the Persister and then the mirrors.
// It is the only caller of the Persister.
type Writer struct {
	queue     ports.BatchQueue
	persister ports.Persister
	mirrors   []ports.Mirror
	workers   []*mirrorWorker
	pol       ports.Policy
	obs       ports.Observability

	degradedAfter int

	mu          sync.Mutex
	consecutive int
	degraded    bool
}

func NewWriter(q ports.BatchQueue, p ports.Persister, mirrors []ports.Mirror, pol ports.Policy, obs ports.Observability, degradedAfter int) *Writer {
	if degradedAfter <= 0 {
		degradedAfter = DefaultDegradedAfter
	}
	w := &Writer{
		queue:         q,
		persister:     p,
		mirrors:       mirrors,
		pol:           pol,
		obs:           obs,
		degradedAfter: degradedAfter,
	}
	for _, m := range mirrors {
		w.workers = append(w.workers, startMirrorWorker(m, obs, DefaultMirrorQueueLen))
	}
	return w
}

// Degraded reports whether persistence has failed degradedAfter times in a row.
func (w *Writer) Degraded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.degraded
}

func (w *Writer) LastTimestamp() time.Time { return w.persister.LastTimestamp() }

type readySignaller interface {
	Ready() <-chan struct{}
}

// Run writes queued batches until stop is closed, then drains what is left.
func (w *Writer) Run(stop <-chan struct{}) {
	for {
		if b, ok := w.queue.Dequeue(); ok {
			w.write(b)
			continue
		}
		select {
		case <-stop:
			for {
				b, ok := w.queue.Dequeue()
				if !ok {
					return
				}
				w.write(b)
			}
		case <-w.wake():
		}
	}
}

func (w *Writer) wake() <-chan struct{} {
	if r, ok := w.queue.(readySignaller); ok {
		return r.Ready()
	}
	ch := make(chan struct{})
	sleep := w.pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}
	time.AfterFunc(sleep, func() { close(ch) })
	return ch
}

func (w *Writer) write(b domain.Batch) {
	w.obs.SetGauge(ports.MetricQueueLength, float64(w.queue.Len()))

	if b.Failed() {
		if err := w.persister.RecordFailure(b.Timestamp, b.Failure); err != nil {
			w.failed(b, err)
			return
		}
		w.succeeded()
		return
	}

	start := time.Now()
	err := w.persister.Append(b)
	w.obs.ObserveLatency(ports.MetricPersistLatency, time.Since(start).Seconds())
	if err != nil {
		w.failed(b, err)
		return
	}
	w.obs.IncCounter(ports.MetricReadingsPersisted, float64(b.Len()))
	w.succeeded()

	for _, mw := range w.workers {
		mw.offer(b)
	}
}

func (w *Writer) failed(b domain.Batch, err error) {
	w.obs.IncCounter(ports.MetricPersistFailures, 1)
	w.obs.LogCritical("persist_failed", err,
		ports.Field{Key: "seq", Value: b.Seq},
		ports.Field{Key: "error_kind", Value: ports.ErrorKind(err)})

	w.mu.Lock()
	w.consecutive++
	flipped := !w.degraded && w.consecutive >= w.degradedAfter
	if flipped {
		w.degraded = true
	}
	n := w.consecutive
	w.mu.Unlock()

	if flipped {
		w.obs.SetGauge(ports.MetricDegraded, 1)
		w.obs.LogCritical("persistence_degraded", fmt.Errorf("%d consecutive failures", n))
	}
}

func (w *Writer) succeeded() {
	w.mu.Lock()
	recovered := w.degraded
	w.consecutive = 0
	w.degraded = false
	w.mu.Unlock()

	if recovered {
		w.obs.SetGauge(ports.MetricDegraded, 0)
		w.obs.LogInfo("persistence_recovered")
	}
}

// Close releases the persister, gives each mirror up to mirrorTimeout to
// flush its backlog, then closes the mirrors.
func (w *Writer) Close() error {
	errs := []error{w.persister.Close()}
	var wg sync.WaitGroup
	for _, mw := range w.workers {
		wg.Add(1)
		go func(mw *mirrorWorker) {
			defer wg.Done()
			mw.stop(mirrorTimeout)
		}(mw)
	}
	wg.Wait()
	w.workers = nil
	for _, m := range w.mirrors {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mirror %s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// enqueueWithPolicy hands b to the queue, honouring the on_queue_full policy.
// "block" retries every IdleSleep until space frees up or ctx ends.
func enqueueWithPolicy(ctx context.Context, q ports.BatchQueue, b domain.Batch, pol ports.Policy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(b); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			select {
			case <-ctx.Done():
				obs.LogError("queue_full_drop", fmt.Errorf("%w: shutting down with %d batches queued", ports.ErrQueueFull, q.Len()),
					ports.Field{Key: "seq", Value: b.Seq})
				return false
			case <-time.After(sleep):
			}
		case "drop", "":
			obs.LogError("queue_full_drop", fmt.Errorf("%w: capacity %d", ports.ErrQueueFull, pol.MaxQueueLen),
				ports.Field{Key: "seq", Value: b.Seq})
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
