package voltlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelMirrorClosed is returned when a channel mirror is written to after being closed.
var ErrChannelMirrorClosed = errors.New("voltlog: channel mirror closed")

// BatchFunc handles one persisted batch.
type BatchFunc func(Batch) error

// NewCallbackMirror adapts a function into a Mirror so callers can observe
// persisted batches without defining a struct.
func NewCallbackMirror(name string, fn BatchFunc) Mirror {
	if name == "" {
		name = "callback"
	}
	return &callbackMirror{name: name, fn: fn}
}

// NewChannelMirror exposes persisted batches on a channel; it returns the
// mirror, the read-only channel and a close function for shutdown.
func NewChannelMirror(name string, buffer int) (Mirror, <-chan Batch, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Batch, buffer)
	m := &channelMirror{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return m, ch, func() { m.close() }
}

type callbackMirror struct {
	name string
	fn   BatchFunc
}

func (m *callbackMirror) WriteBatch(_ context.Context, b Batch) error {
	if m.fn == nil {
		return fmt.Errorf("callback mirror %q: nil handler", m.name)
	}
	if len(b.Readings) == 0 {
		return nil
	}
	return m.fn(b.Clone())
}

func (m *callbackMirror) Name() string { return m.name }
func (m *callbackMirror) Close() error { return nil }

type channelMirror struct {
	name   string
	ch     chan Batch
	closed chan struct{}
	once   sync.Once
	// mu keeps ch open while a send is in flight.
	mu sync.RWMutex
}

func (m *channelMirror) WriteBatch(ctx context.Context, b Batch) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	select {
	case <-m.closed:
		return ErrChannelMirrorClosed
	default:
	}

	if len(b.Readings) == 0 {
		return nil
	}

	select {
	case <-m.closed:
		return ErrChannelMirrorClosed
	case <-ctx.Done():
		return ctx.Err()
	case m.ch <- b.Clone():
		return nil
	}
}

func (m *channelMirror) Name() string { return m.name }

func (m *channelMirror) Close() error {
	m.close()
	return nil
}

func (m *channelMirror) close() {
	m.once.Do(func() {
		close(m.closed)
		m.mu.Lock()
		close(m.ch)
		m.mu.Unlock()
	})
}
