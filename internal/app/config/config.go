package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/VoltLog/internal/adapters/device"
	"github.com/ghalamif/VoltLog/internal/adapters/observability"
	"github.com/ghalamif/VoltLog/internal/adapters/opcua"
	"github.com/ghalamif/VoltLog/internal/adapters/persist"
	"github.com/ghalamif/VoltLog/internal/adapters/sink"
	"github.com/ghalamif/VoltLog/internal/app/pipeline"
	"github.com/ghalamif/VoltLog/internal/ports"
)

const (
	DeviceHTTP  = "http"
	DeviceOPCUA = "opcua"

	DefaultBufferCapacity = 3600
)

type Config struct {
	DeviceType string                  `yaml:"device_type"`
	Device     device.Config           `yaml:"device"`
	OPCUA      opcua.Config            `yaml:"opcua"`
	Sampler    pipeline.SamplerConfig  `yaml:"sampler"`
	Backoff    pipeline.BackoffConfig  `yaml:"backoff"`
	Buffer     BufferConfig            `yaml:"buffer"`
	Outputs    persist.Config          `yaml:"outputs"`
	Policy     ports.Policy            `yaml:"policy"`
	Log        observability.LogConfig `yaml:"log"`
	Metrics    MetricsConfig           `yaml:"metrics"`
	Health     HealthConfig            `yaml:"health"`
	Mirrors    MirrorsConfig           `yaml:"mirrors"`
}

type BufferConfig struct {
	Capacity int `yaml:"capacity"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
	// ResourceInterval is how often process and disk gauges are refreshed.
	ResourceInterval time.Duration `yaml:"resource_interval"`
}

type HealthConfig struct {
	MaxConsecutiveWriteFailures int `yaml:"max_consecutive_write_failures"`
}

type MirrorsConfig struct {
	Timescale sink.TimescaleConfig `yaml:"timescale"`
	MQTT      sink.MQTTConfig      `yaml:"mqtt"`
	Redis     sink.RedisConfig     `yaml:"redis"`
}

// Load reads the YAML file, applies VOLTLOG_* overrides and defaults, then
// validates. Every failure wraps ports.ErrConfiguration.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfiguration, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfiguration, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfiguration, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfiguration, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("VOLTLOG_DEVICE_HOST"); ok {
		c.Device.Host = v
	}
	if v, ok := lookup("VOLTLOG_DEVICE_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VOLTLOG_DEVICE_PORT: %w", err)
		}
		c.Device.Port = port
	}
	if v, ok := lookup("VOLTLOG_CHANNELS"); ok {
		channels, err := parseChannels(v)
		if err != nil {
			return fmt.Errorf("VOLTLOG_CHANNELS: %w", err)
		}
		c.Device.Channels = channels
	}
	if v, ok := lookup("VOLTLOG_POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VOLTLOG_POLL_INTERVAL: %w", err)
		}
		c.Sampler.Interval = d
	}
	if v, ok := lookup("VOLTLOG_CSV_PATH"); ok {
		c.Outputs.CSVPath = v
	}
	if v, ok := lookup("VOLTLOG_LOG_PATH"); ok {
		c.Outputs.LogPath = v
	}
	if v, ok := lookup("VOLTLOG_BUFFER_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VOLTLOG_BUFFER_CAPACITY: %w", err)
		}
		c.Buffer.Capacity = n
	}
	if v, ok := lookup("VOLTLOG_METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	return nil
}

func parseChannels(v string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *Config) applyDefaults() {
	if c.DeviceType == "" {
		c.DeviceType = DeviceHTTP
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 256
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}
	if c.Buffer.Capacity == 0 {
		c.Buffer.Capacity = DefaultBufferCapacity
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Metrics.ResourceInterval == 0 {
		c.Metrics.ResourceInterval = 15 * time.Second
	}
	if c.Health.MaxConsecutiveWriteFailures == 0 {
		c.Health.MaxConsecutiveWriteFailures = pipeline.DefaultDegradedAfter
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	switch c.DeviceType {
	case DeviceHTTP:
		c.Device.ApplyDefaults()
		c.Sampler.FetchTimeout = c.Device.Timeout
	case DeviceOPCUA:
		c.OPCUA.ApplyDefaults()
		c.Sampler.FetchTimeout = c.OPCUA.Timeout
	}
	c.Sampler.ApplyDefaults()
	c.Backoff.ApplyDefaults()
	c.Sampler.Backoff = c.Backoff
	c.Outputs.ApplyDefaults()

	c.Mirrors.Timescale.ApplyDefaults()
	c.Mirrors.MQTT.ApplyDefaults()
	c.Mirrors.Redis.ApplyDefaults()
}

func (c *Config) validate() error {
	switch c.DeviceType {
	case DeviceHTTP:
		if err := c.Device.Validate(); err != nil {
			return fmt.Errorf("device config: %w", err)
		}
	case DeviceOPCUA:
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	default:
		return fmt.Errorf("device_type %q: want %s or %s", c.DeviceType, DeviceHTTP, DeviceOPCUA)
	}
	if c.Buffer.Capacity < 1 {
		return errors.New("buffer.capacity must be at least 1")
	}
	if c.Policy.MaxQueueLen < 1 {
		return errors.New("policy.max_queue_len must be at least 1")
	}
	if c.Policy.OnQueueFull != "drop" && c.Policy.OnQueueFull != "block" {
		return fmt.Errorf("policy.on_queue_full %q: want drop or block", c.Policy.OnQueueFull)
	}
	if err := c.Outputs.Validate(); err != nil {
		return fmt.Errorf("outputs: %w", err)
	}
	if c.Mirrors.Timescale.Enabled() {
		if err := c.Mirrors.Timescale.Validate(); err != nil {
			return err
		}
	}
	if c.Mirrors.MQTT.Enabled() {
		if err := c.Mirrors.MQTT.Validate(); err != nil {
			return err
		}
	}
	if c.Mirrors.Redis.Enabled() {
		if err := c.Mirrors.Redis.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Channels returns the configured channel order for the selected device.
func (c *Config) Channels() []int {
	if c.DeviceType == DeviceOPCUA {
		return c.OPCUA.Channels()
	}
	return c.Device.Channels
}
