package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/VoltLog/internal/adapters/queue"
	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

func TestEnqueueWithPolicyBlock(t *testing.T) {
	q := &mockQueue{}
	q.failures = 1

	pol := ports.Policy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := newMockObs()

	if ok := enqueueWithPolicy(context.Background(), q, domain.Batch{Seq: 1}, pol, obs); !ok {
		t.Fatalf("expected enqueue to eventually succeed")
	}
	if q.calls != 2 {
		t.Fatalf("expected two enqueue attempts, got %d", q.calls)
	}
}

func TestEnqueueWithPolicyBlockGivesUpOnShutdown(t *testing.T) {
	q := &mockQueue{failAlways: true}
	pol := ports.Policy{OnQueueFull: "block", IdleSleep: time.Millisecond}
	obs := newMockObs()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ok := enqueueWithPolicy(ctx, q, domain.Batch{Seq: 1}, pol, obs); ok {
		t.Fatalf("expected blocked enqueue to give up after cancellation")
	}
	if !errors.Is(obs.lastError(), ports.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull to be logged, got %v", obs.lastError())
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	q := &mockQueue{failAlways: true}
	pol := ports.Policy{
		OnQueueFull: "drop",
	}
	obs := newMockObs()

	if ok := enqueueWithPolicy(context.Background(), q, domain.Batch{Seq: 1}, pol, obs); ok {
		t.Fatalf("expected enqueueWithPolicy to fail")
	}
	if len(obs.errors) == 0 {
		t.Fatalf("expected drop to log an error")
	}
}

func TestWriterPersistsInOrderAndMirrors(t *testing.T) {
	q := queue.NewMemQueue(8)
	p := &stubPersister{}
	good := &stubMirror{name: "good"}
	bad := &stubMirror{name: "bad", err: errors.New("broker down")}
	obs := newMockObs()
	w := NewWriter(q, p, []ports.Mirror{good, bad}, ports.Policy{}, obs, 0)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q.Enqueue(domain.Batch{Seq: 1, Timestamp: ts, Readings: []domain.Reading{{ChannelID: 0, Status: domain.StatusOK}}})
	q.Enqueue(domain.Batch{Seq: 2, Timestamp: ts.Add(time.Second), Failure: ports.ErrTimeout})
	q.Enqueue(domain.Batch{Seq: 3, Timestamp: ts.Add(2 * time.Second), Readings: []domain.Reading{{ChannelID: 0, Status: domain.StatusOK}}})

	stop := make(chan struct{})
	close(stop)
	w.Run(stop)
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	if got := p.seqs(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected appended batches %v", got)
	}
	if len(p.failures) != 1 || !errors.Is(p.failures[0], ports.ErrTimeout) {
		t.Fatalf("expected one recorded failure, got %v", p.failures)
	}
	if good.count() != 2 || bad.count() != 2 {
		t.Fatalf("mirrors should see every persisted batch: good=%d bad=%d", good.count(), bad.count())
	}
	if got := obs.counter(ports.MetricMirrorFailures); got != 2 {
		t.Fatalf("expected 2 mirror failures, got %v", got)
	}
	if got := obs.counter(ports.MetricReadingsPersisted); got != 2 {
		t.Fatalf("expected 2 persisted readings, got %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("queue not drained")
	}
}

func TestWriterDegradesAndRecovers(t *testing.T) {
	q := queue.NewMemQueue(8)
	p := &stubPersister{appendErr: ports.ErrPersistenceWrite}
	mirror := &stubMirror{name: "m"}
	obs := newMockObs()
	w := NewWriter(q, p, []ports.Mirror{mirror}, ports.Policy{}, obs, 2)

	w.write(domain.Batch{Seq: 1, Readings: []domain.Reading{{}}})
	if w.Degraded() {
		t.Fatalf("one failure must not degrade")
	}
	w.write(domain.Batch{Seq: 2, Readings: []domain.Reading{{}}})
	if !w.Degraded() {
		t.Fatalf("expected degraded after 2 failures")
	}
	if obs.gauge(ports.MetricDegraded) != 1 {
		t.Fatalf("degraded gauge not set")
	}
	if mirror.count() != 0 {
		t.Fatalf("mirrors must not receive unpersisted batches")
	}

	p.setAppendErr(nil)
	w.write(domain.Batch{Seq: 3, Readings: []domain.Reading{{}}})
	if w.Degraded() || obs.gauge(ports.MetricDegraded) != 0 {
		t.Fatalf("expected recovery after a successful write")
	}
	if got := obs.counter(ports.MetricPersistFailures); got != 2 {
		t.Fatalf("expected 2 persist failures, got %v", got)
	}
}

func TestWriterWakesOnEnqueue(t *testing.T) {
	q := queue.NewMemQueue(4)
	p := &stubPersister{}
	w := NewWriter(q, p, nil, ports.Policy{}, newMockObs(), 0)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()

	q.Enqueue(domain.Batch{Seq: 7, Readings: []domain.Reading{{}}})
	deadline := time.Now().Add(2 * time.Second)
	for len(p.seqs()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("writer did not pick up the batch")
		}
		time.Sleep(time.Millisecond)
	}
	close(stop)
	<-done
}

func TestWriterNotHeldUpBySlowMirror(t *testing.T) {
	q := queue.NewMemQueue(2)
	p := &stubPersister{}
	slow := newBlockingMirror("slow")
	obs := newMockObs()
	pol := ports.Policy{OnQueueFull: "drop", MaxQueueLen: 2}
	w := NewWriter(q, p, []ports.Mirror{slow}, pol, obs, 0)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 6; i++ {
		b := domain.Batch{Seq: uint64(i), Timestamp: ts.Add(time.Duration(i) * time.Second), Readings: []domain.Reading{{}}}
		if !enqueueWithPolicy(context.Background(), q, b, pol, obs) {
			t.Fatalf("batch %d dropped while a mirror was stuck", i)
		}
		deadline := time.Now().Add(time.Second)
		for len(p.seqs()) < i {
			if time.Now().After(deadline) {
				t.Fatalf("batch %d not persisted within 1s, persisted=%v", i, p.seqs())
			}
			time.Sleep(time.Millisecond)
		}
	}
	close(stop)
	<-done

	if got := p.seqs(); len(got) != 6 {
		t.Fatalf("expected every batch persisted, got %v", got)
	}

	start := time.Now()
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*mirrorTimeout {
		t.Fatalf("close took %s with a stuck mirror", elapsed)
	}
}

func TestMirrorWorkerDropsWhenFull(t *testing.T) {
	slow := newBlockingMirror("slow")
	obs := newMockObs()
	mw := startMirrorWorker(slow, obs, 1)

	mw.offer(domain.Batch{Seq: 1})
	select {
	case <-slow.entered:
	case <-time.After(time.Second):
		t.Fatal("mirror never received the first batch")
	}
	mw.offer(domain.Batch{Seq: 2})
	mw.offer(domain.Batch{Seq: 3})

	if got := obs.counter(ports.MetricMirrorDropped); got != 1 {
		t.Fatalf("expected 1 dropped mirror batch, got %v", got)
	}
	if !errors.Is(obs.lastError(), ports.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull to be logged, got %v", obs.lastError())
	}

	mw.stop(10 * time.Millisecond)
	if got := slow.seqs(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected seqs [1 2] to reach the mirror, got %v", got)
	}
	if got := obs.counter(ports.MetricMirrorFailures); got != 2 {
		t.Fatalf("cancelled writes should count as failures, got %v", got)
	}
}

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(domain.Batch) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) Dequeue() (domain.Batch, bool) { return domain.Batch{}, false }
func (m *mockQueue) Len() int                      { return 0 }

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	counters map[string]float64
	gauges   map[string]float64
}

func newMockObs() *mockObs {
	return &mockObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}

func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}

func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) ObserveLatency(string, float64)            {}

func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}

func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

func (m *mockObs) lastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errors) == 0 {
		return nil
	}
	return m.errors[len(m.errors)-1]
}

type stubPersister struct {
	ports.Persister
	mu        sync.Mutex
	batches   []domain.Batch
	failures  []error
	last      time.Time
	appendErr error
}

func (s *stubPersister) Append(b domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.batches = append(s.batches, b)
	s.last = b.Timestamp
	return nil
}

func (s *stubPersister) RecordFailure(_ time.Time, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
	return nil
}

func (s *stubPersister) LastTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *stubPersister) setAppendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

func (s *stubPersister) seqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b.Seq)
	}
	return out
}

type stubMirror struct {
	name string
	err  error
	mu   sync.Mutex
	n    int
}

func (s *stubMirror) WriteBatch(context.Context, domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.err
}

func (s *stubMirror) Name() string { return s.name }
func (s *stubMirror) Close() error { return nil }

func (s *stubMirror) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// blockingMirror accepts a batch and then hangs until its context ends.
type blockingMirror struct {
	ports.Mirror
	name    string
	entered chan struct{}
	mu      sync.Mutex
	got     []uint64
}

func newBlockingMirror(name string) *blockingMirror {
	return &blockingMirror{name: name, entered: make(chan struct{}, 16)}
}

func (s *blockingMirror) WriteBatch(ctx context.Context, b domain.Batch) error {
	s.mu.Lock()
	s.got = append(s.got, b.Seq)
	s.mu.Unlock()
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingMirror) Name() string { return s.name }
func (s *blockingMirror) Close() error { return nil }

func (s *blockingMirror) seqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.got...)
}
