package voltlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ghalamif/VoltLog/internal/adapters/ringbuffer"
)

func TestConfLoadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte("device:\n  host: 10.0.0.5\n  channels: [0, 1, 2]\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var applied bool
	flow, err := Conf(path, func(f *Flow) { applied = true })
	if err != nil {
		t.Fatalf("Conf returned error: %v", err)
	}
	if !applied {
		t.Fatalf("expected flow option to run")
	}
	if got := flow.Config().Device.Channels; len(got) != 3 {
		t.Fatalf("expected 3 channels, got %v", got)
	}
}

func TestConfMissingFile(t *testing.T) {
	if _, err := Conf(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}

func TestFlowStreamOptionsWireRuntime(t *testing.T) {
	cfg := testConfig(t, "")
	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	dev := &stubDevice{channels: []int{0, 1}}
	buf := ringbuffer.New(4, []int{0, 1})
	obs := &stubObservability{}

	rt, err := flow.
		StreamIN(
			StreamInDevice(dev),
			StreamInBuffer(buf),
		).
		StreamOUT(
			StreamOutPersister(&stubPersister{}),
			StreamOutCallback("cb", func(Batch) error { return nil }),
			StreamOutObservability(obs),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.device != dev {
		t.Fatalf("expected custom device to be wired")
	}
	if rt.buffer != buf {
		t.Fatalf("expected custom buffer to be wired")
	}
	if rt.obs != obs {
		t.Fatalf("expected custom observability to be wired")
	}
}

func TestFlowRunStopsOnCancelledContext(t *testing.T) {
	cfg := testConfig(t, "metrics:\n  addr: 127.0.0.1:0\n")
	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := flow.StreamIN(StreamInDevice(&stubDevice{channels: []int{0, 1}})).Run(ctx,
		StreamOutPersister(&stubPersister{}),
		StreamOutObservability(&stubObservability{}),
	); err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}

func TestConfFromConfigRequiresConfig(t *testing.T) {
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	var f *Flow
	if _, err := f.StreamOUT(); err == nil {
		t.Fatalf("expected error for nil flow")
	}
}
