package voltlog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/VoltLog/internal/adapters/device"
	"github.com/ghalamif/VoltLog/internal/adapters/httpapi"
	"github.com/ghalamif/VoltLog/internal/adapters/observability"
	"github.com/ghalamif/VoltLog/internal/adapters/opcua"
	"github.com/ghalamif/VoltLog/internal/adapters/persist"
	"github.com/ghalamif/VoltLog/internal/adapters/queue"
	"github.com/ghalamif/VoltLog/internal/adapters/ringbuffer"
	"github.com/ghalamif/VoltLog/internal/adapters/sink"
	"github.com/ghalamif/VoltLog/internal/app/config"
	"github.com/ghalamif/VoltLog/internal/app/pipeline"
	"github.com/ghalamif/VoltLog/internal/ports"
)

const shutdownTimeout = 5 * time.Second

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	device        DeviceClient
	persister     Persister
	buffer        ReadingBuffer
	queue         BatchQueue
	observability Observability
	registry      *prometheus.Registry
	mirrors       []Mirror
	samplerOpts   []pipeline.Option
}

// WithDevice injects a custom device client (simulators, other protocols).
func WithDevice(d DeviceClient) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.device = d
	}
}

// WithPersister replaces the CSV + structured log persister.
func WithPersister(p Persister) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.persister = p
	}
}

// WithBuffer injects the ring buffer the query API reads from.
func WithBuffer(b ReadingBuffer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.buffer = b
	}
}

// WithBatchQueue swaps the bounded in-memory write queue.
func WithBatchQueue(q BatchQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend. The /metrics
// route is only served for the built-in Prometheus backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRegistry registers the built-in metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithMirror adds a downstream copy of every persisted batch.
func WithMirror(m Mirror) RuntimeOption {
	return func(o *runtimeOverrides) {
		if m != nil {
			o.mirrors = append(o.mirrors, m)
		}
	}
}

// WithClock replaces time.Now in the sampler.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.samplerOpts = append(o.samplerOpts, pipeline.WithClock(now))
	}
}

// Runtime wires device → sampler → {ring buffer, write queue → persister →
// mirrors} and serves the query API.
type Runtime struct {
	cfg      *Config
	runID    string
	obs      ports.Observability
	registry *prometheus.Registry
	device   ports.DeviceClient
	buffer   ports.ReadingBuffer
	queue    ports.BatchQueue
	writer   *pipeline.Writer
	sampler  *pipeline.Sampler
	handler  http.Handler

	httpSrv  *http.Server
	listener net.Listener
	stopBg   context.CancelFunc
}

// NewRuntime bootstraps the default adapters (HTTP or OPC UA device, ring
// buffer, memory queue, CSV + JSON log persister, configured mirrors,
// logrus + Prometheus observability). Options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg, runID: uuid.NewString()}

	rt.obs = overrides.observability
	if rt.obs == nil {
		rt.registry = overrides.registry
		if rt.registry == nil {
			rt.registry = prometheus.NewRegistry()
			rt.registry.MustRegister(collectors.NewGoCollector())
		}
		rt.obs = observability.NewPromObs(rt.registry, observability.NewLogger(cfg.Log))
	}

	var err error
	rt.device = overrides.device
	if rt.device == nil {
		if rt.device, err = newDevice(cfg); err != nil {
			return nil, err
		}
	}

	rt.buffer = overrides.buffer
	if rt.buffer == nil {
		rt.buffer = ringbuffer.New(cfg.Buffer.Capacity, rt.device.Channels())
	}

	rt.queue = overrides.queue
	if rt.queue == nil {
		rt.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	p := overrides.persister
	if p == nil {
		outputs := cfg.Outputs
		outputs.RunID = rt.runID
		fp, err := persist.Open(outputs)
		if err != nil {
			rt.device.Close()
			return nil, err
		}
		p = fp
	}

	mirrors := append([]Mirror(nil), overrides.mirrors...)
	mirrors = append(mirrors, openMirrors(cfg.Mirrors, rt.obs)...)

	rt.writer = pipeline.NewWriter(rt.queue, p, mirrors, cfg.Policy, rt.obs, cfg.Health.MaxConsecutiveWriteFailures)
	rt.sampler = pipeline.NewSampler(cfg.Sampler, rt.device, rt.buffer, rt.queue, rt.writer, cfg.Policy, rt.obs, overrides.samplerOpts...)

	var metrics http.Handler
	if rt.registry != nil {
		metrics = promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})
	}
	rt.handler = httpapi.NewServer(rt.buffer, rt.writer.Degraded, metrics)
	return rt, nil
}

func newDevice(cfg *Config) (DeviceClient, error) {
	switch cfg.DeviceType {
	case config.DeviceOPCUA:
		return opcua.NewDevice(cfg.OPCUA)
	default:
		return device.NewHTTPClient(cfg.Device)
	}
}

// openMirrors connects every configured mirror. A mirror that cannot connect
// is logged and skipped; it never blocks startup.
func openMirrors(cfg config.MirrorsConfig, obs ports.Observability) []Mirror {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out []Mirror
	if cfg.Timescale.Enabled() {
		if m, err := sink.OpenTimescale(ctx, cfg.Timescale); err != nil {
			obs.LogError("mirror_unavailable", err, ports.Field{Key: "mirror", Value: "timescaledb"})
		} else {
			out = append(out, m)
		}
	}
	if cfg.MQTT.Enabled() {
		if m, err := sink.NewMQTTMirror(cfg.MQTT); err != nil {
			obs.LogError("mirror_unavailable", err, ports.Field{Key: "mirror", Value: "mqtt"})
		} else {
			out = append(out, m)
		}
	}
	if cfg.Redis.Enabled() {
		if m, err := sink.NewRedisMirror(ctx, cfg.Redis); err != nil {
			obs.LogError("mirror_unavailable", err, ports.Field{Key: "mirror", Value: "redis"})
		} else {
			out = append(out, m)
		}
	}
	return out
}

// RunID identifies this process in every structured log line.
func (r *Runtime) RunID() string { return r.runID }

// Buffer exposes the ring buffer for in-process dashboards.
func (r *Runtime) Buffer() ReadingBuffer { return r.buffer }

// Handler is the query API, for embedding into an existing server.
func (r *Runtime) Handler() http.Handler { return r.handler }

// Degraded reports whether persistence keeps failing.
func (r *Runtime) Degraded() bool { return r.writer.Degraded() }

// Addr returns the address the query API listens on once started.
func (r *Runtime) Addr() string {
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

type prober interface {
	Probe(ctx context.Context, obs ports.Observability) error
}

// Start probes the device, starts the query API and resource gauges. It
// returns immediately; call Run to poll.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	if p, ok := r.device.(prober); ok {
		if err := p.Probe(ctx, r.obs); err != nil {
			if r.cfg.Device.StartupProbe.Required {
				return fmt.Errorf("startup probe: %w", err)
			}
			r.obs.LogError("startup_probe_failed", err)
		}
	}

	bg, cancel := context.WithCancel(context.Background())
	r.stopBg = cancel

	if r.cfg.Metrics.Addr != "" {
		ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
		if err != nil {
			cancel()
			return fmt.Errorf("listen %s: %w", r.cfg.Metrics.Addr, err)
		}
		r.listener = ln
		r.httpSrv = &http.Server{Handler: r.handler, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := r.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.obs.LogError("http_server_exited", err)
			}
		}()
	}

	dir := filepath.Dir(r.cfg.Outputs.CSVPath)
	go observability.NewResourceSampler(r.obs, dir).Run(bg, r.cfg.Metrics.ResourceInterval)

	r.obs.LogInfo("voltlog_started",
		ports.Field{Key: "run_id", Value: r.runID},
		ports.Field{Key: "channels", Value: r.device.Channels()},
		ports.Field{Key: "addr", Value: r.Addr()})
	return nil
}

// Run starts the runtime and polls until ctx is cancelled, then shuts down
// after the last batch is persisted.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		r.close()
		return err
	}
	runErr := r.sampler.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, r.Shutdown(shutdownCtx))
}

// Shutdown stops the query API and releases the device, persister and mirrors.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	if r.httpSrv != nil {
		if err := r.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, r.close())
	r.obs.LogInfo("voltlog_stopped", ports.Field{Key: "run_id", Value: r.runID})
	return errors.Join(errs...)
}

func (r *Runtime) close() error {
	if r.stopBg != nil {
		r.stopBg()
	}
	return errors.Join(r.device.Close(), r.writer.Close())
}
