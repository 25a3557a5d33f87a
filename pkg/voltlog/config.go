package voltlog

import (
	"github.com/ghalamif/VoltLog/internal/adapters/device"
	"github.com/ghalamif/VoltLog/internal/adapters/observability"
	"github.com/ghalamif/VoltLog/internal/adapters/opcua"
	"github.com/ghalamif/VoltLog/internal/adapters/persist"
	"github.com/ghalamif/VoltLog/internal/adapters/sink"
	"github.com/ghalamif/VoltLog/internal/app/config"
	"github.com/ghalamif/VoltLog/internal/app/pipeline"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// DeviceConfig describes the ioLogik REST endpoint and channel order.
	DeviceConfig = device.Config
	// ProbeConfig controls the startup connectivity check.
	ProbeConfig = device.ProbeConfig
	// OPCUAConfig holds connection + node details for OPC UA devices.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig binds a channel to a node id.
	OPCUANodeConfig = opcua.NodeConfig
	SamplerConfig   = pipeline.SamplerConfig
	BackoffConfig   = pipeline.BackoffConfig
	BufferConfig    = config.BufferConfig
	// OutputsConfig names the CSV and structured log files.
	OutputsConfig = persist.Config
	// Policy controls the write queue.
	Policy          = ports.Policy
	LogConfig       = observability.LogConfig
	MetricsConfig   = config.MetricsConfig
	HealthConfig    = config.HealthConfig
	MirrorsConfig   = config.MirrorsConfig
	TimescaleConfig = sink.TimescaleConfig
	MQTTConfig      = sink.MQTTConfig
	RedisConfig     = sink.RedisConfig
)

// LoadConfig loads YAML from disk, applies VOLTLOG_* overrides and validates.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig is LoadConfig for YAML already in memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
