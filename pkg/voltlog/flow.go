package voltlog

import (
	"context"
	"fmt"
)

// Flow collects overrides for a poller in two groups: where readings come
// from (StreamIN) and where they go (StreamOUT). StreamOUT builds the Runtime.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

type FlowOption func(*Flow)

// StreamInOption overrides the device, ring buffer or write queue.
type StreamInOption func(*Flow)

// StreamOutOption overrides the persister, mirrors or observability.
type StreamOutOption func(*Flow)

// Conf reads a VoltLog YAML file (VOLTLOG_* variables win) and starts a Flow.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a Config built in code. The Config is
// used as is; callers that skip LoadConfig own its defaults.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config is live: edits made before StreamOUT reach the Runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies the output overrides and builds the Runtime. The output
// files are opened here, so a bad path fails before polling starts.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run polls until ctx is cancelled and the last queued batch is on disk.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInDevice injects a custom device client.
func StreamInDevice(d DeviceClient) StreamInOption {
	return func(f *Flow) {
		if f != nil && d != nil {
			f.appendOptions(WithDevice(d))
		}
	}
}

// StreamInBuffer lets an embedding dashboard own the ring buffer.
func StreamInBuffer(b ReadingBuffer) StreamInOption {
	return func(f *Flow) {
		if f != nil && b != nil {
			f.appendOptions(WithBuffer(b))
		}
	}
}

// StreamInQueue replaces the bounded batch queue between sampler and writer.
func StreamInQueue(q BatchQueue) StreamInOption {
	return func(f *Flow) {
		if f != nil && q != nil {
			f.appendOptions(WithBatchQueue(q))
		}
	}
}

// StreamOutPersister replaces the CSV + structured log persister.
func StreamOutPersister(p Persister) StreamOutOption {
	return func(f *Flow) {
		if f != nil && p != nil {
			f.appendOptions(WithPersister(p))
		}
	}
}

// StreamOutMirror adds a downstream mirror.
func StreamOutMirror(m Mirror) StreamOutOption {
	return func(f *Flow) {
		if f != nil && m != nil {
			f.appendOptions(WithMirror(m))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback receives a copy of every batch once it is on disk.
func StreamOutCallback(name string, fn BatchFunc) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithMirror(NewCallbackMirror(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
