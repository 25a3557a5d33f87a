package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/ghalamif/VoltLog/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, logrus.New())

	obs.IncCounter(ports.MetricReadingsPersisted, 5)
	if got := testutil.ToFloat64(obs.counters[ports.MetricReadingsPersisted]); got != 5 {
		t.Fatalf("expected persisted counter 5, got %f", got)
	}

	obs.IncCounter(ports.MetricBatchesDropped, 2)
	if got := testutil.ToFloat64(obs.counters[ports.MetricBatchesDropped]); got != 2 {
		t.Fatalf("expected drop counter 2, got %f", got)
	}

	obs.SetGauge(ports.MetricQueueLength, 42)
	if got := testutil.ToFloat64(obs.gauges[ports.MetricQueueLength]); got != 42 {
		t.Fatalf("expected queue gauge 42, got %f", got)
	}

	obs.ObserveLatency(ports.MetricFetchLatency, 0.5)
	hCollector := obs.histos[ports.MetricFetchLatency].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	obs.IncCounter("unknown_metric", 1)
	obs.SetGauge("unknown_gauge", 1)

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("gather: n=%d err=%v", n, err)
	}
}

func TestPromObsLogsFields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	obs := NewPromObs(prometheus.NewRegistry(), log)

	obs.LogError("poll failed", errors.New("boom"), ports.Field{Key: "seq", Value: 3})
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["msg"] != "poll failed" || line["error"] != "boom" || line["seq"] != float64(3) || line["level"] != "error" {
		t.Fatalf("unexpected log line: %v", line)
	}

	buf.Reset()
	obs.LogCritical("persist", errors.New("disk"))
	if !strings.Contains(buf.String(), `"critical":true`) {
		t.Fatalf("critical flag missing: %s", buf.String())
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltlog.log")
	log := NewLogger(LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	log.Info("hello")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("unexpected log file: %s", data)
	}

	if NewLogger(LogConfig{Level: "nonsense"}).GetLevel() != logrus.InfoLevel {
		t.Fatalf("unknown level should fall back to info")
	}
}

func TestResourceSamplerSetsGauges(t *testing.T) {
	obs := NewPromObs(prometheus.NewRegistry(), logrus.New())
	NewResourceSampler(obs, t.TempDir()).Sample()
	if got := testutil.ToFloat64(obs.gauges[ports.MetricProcessRSS]); got <= 0 {
		t.Fatalf("expected rss > 0, got %f", got)
	}
	if got := testutil.ToFloat64(obs.gauges[ports.MetricOutputDiskFree]); got <= 0 {
		t.Fatalf("expected free disk > 0, got %f", got)
	}
}
