package voltlog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBatch(seq uint64) Batch {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Batch{
		Seq:       seq,
		Timestamp: ts,
		Readings: []Reading{
			{Timestamp: ts, ChannelID: 0, Value: 3.3, Status: StatusOK},
			{Timestamp: ts, ChannelID: 1, Status: StatusError},
		},
	}
}

func TestNewCallbackMirror(t *testing.T) {
	var received []Batch
	m := NewCallbackMirror("cb", func(b Batch) error {
		received = append(received, b)
		return nil
	})

	in := testBatch(42)
	if err := m.WriteBatch(context.Background(), in); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 || received[0].Seq != 42 {
		t.Fatalf("unexpected batches %+v", received)
	}

	received[0].Readings[0].Value = 9
	if in.Readings[0].Value != 3.3 {
		t.Fatalf("callback should receive a copy of the readings")
	}
	if m.Name() != "cb" {
		t.Fatalf("unexpected name %q", m.Name())
	}
}

func TestNewCallbackMirrorNilHandler(t *testing.T) {
	m := NewCallbackMirror("", nil)
	if m.Name() != "callback" {
		t.Fatalf("expected default name, got %q", m.Name())
	}
	if err := m.WriteBatch(context.Background(), testBatch(1)); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelMirror(t *testing.T) {
	m, ch, closeFn := NewChannelMirror("chan", 1)
	defer closeFn()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.WriteBatch(context.Background(), testBatch(7))
	}()

	var b Batch
	select {
	case b = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if b.Seq != 7 || len(b.Readings) != 2 {
		t.Fatalf("unexpected batch %+v", b)
	}

	closeFn()
	if err := m.WriteBatch(context.Background(), testBatch(8)); !errors.Is(err, ErrChannelMirrorClosed) {
		t.Fatalf("expected ErrChannelMirrorClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelMirrorHonoursContext(t *testing.T) {
	m, _, closeFn := NewChannelMirror("chan", 0)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.WriteBatch(ctx, testBatch(1)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
