package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

const DefaultInterval = time.Second

// SamplerConfig sets the poll cadence.
type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
	// FetchTimeout bounds a fetch that is still running when shutdown starts.
	FetchTimeout time.Duration `yaml:"-"`
	Backoff      BackoffConfig `yaml:"-"`
}

func (c *SamplerConfig) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	c.Backoff.ApplyDefaults()
}

// Sampler owns the acquisition loop: one fetch at a time, each successful
// batch pushed to the buffer and queued for the writer.
type Sampler struct {
	cfg    SamplerConfig
	device ports.DeviceClient
	buffer ports.ReadingBuffer
	queue  ports.BatchQueue
	writer *Writer
	pol    ports.Policy
	obs    ports.Observability

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error

	seq     uint64
	last    time.Time
	backoff backoff
}

type Option func(*Sampler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithWait replaces the sleep between cycles.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Sampler) { s.wait = wait }
}

func NewSampler(cfg SamplerConfig, dev ports.DeviceClient, buf ports.ReadingBuffer, q ports.BatchQueue, w *Writer, pol ports.Policy, obs ports.Observability, opts ...Option) *Sampler {
	cfg.ApplyDefaults()
	s := &Sampler{
		cfg:     cfg,
		device:  dev,
		buffer:  buf,
		queue:   q,
		writer:  w,
		pol:     pol,
		obs:     obs,
		now:     time.Now,
		wait:    sleepCtx,
		backoff: backoff{cfg: cfg.Backoff},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until ctx is cancelled. A fetch in flight at cancellation is
// allowed to finish and its batch is written; Run returns once the writer has
// drained the queue.
func (s *Sampler) Run(ctx context.Context) error {
	if s.writer == nil {
		return errors.New("sampler: writer is required")
	}
	if last := s.writer.LastTimestamp(); last.After(s.last) {
		s.last = last
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writer.Run(stop)
	}()
	defer func() {
		close(stop)
		<-done
	}()

	s.obs.LogInfo("sampler_started",
		ports.Field{Key: "interval", Value: s.cfg.Interval.String()},
		ports.Field{Key: "channels", Value: s.device.Channels()})

	for ctx.Err() == nil {
		delay := s.cycle(ctx)
		if err := s.wait(ctx, delay); err != nil {
			break
		}
	}
	s.obs.LogInfo("sampler_stopped", ports.Field{Key: "cycles", Value: s.seq})
	return nil
}

// cycle runs one poll and returns how long to wait before the next one.
func (s *Sampler) cycle(ctx context.Context) time.Duration {
	start := s.now()
	s.obs.IncCounter(ports.MetricPolls, 1)
	if s.backoff.active() {
		s.obs.IncCounter(ports.MetricRetries, 1)
	}

	fetchCtx, cancel := s.fetchContext(ctx)
	values, err := s.device.Fetch(fetchCtx)
	cancel()
	s.obs.ObserveLatency(ports.MetricFetchLatency, s.now().Sub(start).Seconds())

	s.seq++
	ts := s.stamp(start)

	if err != nil {
		delay := s.backoff.next()
		s.obs.IncCounter(ports.MetricPollFailures, 1)
		s.obs.SetGauge(ports.MetricBackoff, delay.Seconds())
		s.obs.LogError("poll_failed", err,
			ports.Field{Key: "seq", Value: s.seq},
			ports.Field{Key: "error_kind", Value: ports.ErrorKind(err)},
			ports.Field{Key: "retry_in", Value: delay.String()})
		s.dispatch(ctx, domain.Batch{Seq: s.seq, Timestamp: ts, Failure: err})
		return delay
	}

	if s.backoff.active() {
		s.backoff.reset()
		s.obs.SetGauge(ports.MetricBackoff, 0)
		s.obs.LogInfo("poll_recovered", ports.Field{Key: "seq", Value: s.seq})
	}

	// The ring only shows batches that made it into the write queue.
	batch := buildBatch(s.seq, ts, values)
	if s.dispatch(ctx, batch) {
		s.buffer.Push(batch.Clone())
	}

	elapsed := s.now().Sub(start)
	if elapsed >= s.cfg.Interval {
		return 0
	}
	return s.cfg.Interval - elapsed
}

// fetchContext detaches the fetch from shutdown so an in-flight request can
// complete; the device timeout still bounds it.
func (s *Sampler) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.cfg.FetchTimeout > 0 {
		return context.WithTimeout(detached, s.cfg.FetchTimeout)
	}
	return context.WithCancel(detached)
}

// stamp clamps the tick timestamp so it never precedes anything already
// written, including output found on disk at startup.
func (s *Sampler) stamp(t time.Time) time.Time {
	t = t.UTC()
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}

func (s *Sampler) dispatch(ctx context.Context, b domain.Batch) bool {
	ok := enqueueWithPolicy(ctx, s.queue, b, s.pol, s.obs)
	if !ok {
		s.obs.IncCounter(ports.MetricBatchesDropped, 1)
	}
	s.obs.SetGauge(ports.MetricQueueLength, float64(s.queue.Len()))
	return ok
}

func buildBatch(seq uint64, ts time.Time, values []ports.ChannelValue) domain.Batch {
	b := domain.Batch{Seq: seq, Timestamp: ts, Readings: make([]domain.Reading, 0, len(values))}
	for _, v := range values {
		r := domain.Reading{Timestamp: ts, ChannelID: v.ChannelID, Status: v.Status}
		if v.Status == "" {
			r.Status = domain.StatusOK
		}
		if r.Status != domain.StatusError {
			r.Value = v.Value
		}
		b.Readings = append(b.Readings, r)
	}
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
