package voltlog

import (
	base "github.com/ghalamif/VoltLog/pkg/voltlog"
)

// Re-exported errors for convenience.
var (
	ErrNetworkUnavailable  = base.ErrNetworkUnavailable
	ErrTimeout             = base.ErrTimeout
	ErrMalformedResponse   = base.ErrMalformedResponse
	ErrPersistenceWrite    = base.ErrPersistenceWrite
	ErrConfiguration       = base.ErrConfiguration
	ErrQueueFull           = base.ErrQueueFull
	ErrChannelMirrorClosed = base.ErrChannelMirrorClosed
)

// Type aliases so consumers can import github.com/ghalamif/VoltLog directly.
type (
	Config          = base.Config
	DeviceConfig    = base.DeviceConfig
	OPCUAConfig     = base.OPCUAConfig
	OPCUANodeConfig = base.OPCUANodeConfig
	SamplerConfig   = base.SamplerConfig
	BackoffConfig   = base.BackoffConfig
	OutputsConfig   = base.OutputsConfig
	Policy          = base.Policy
	MetricsConfig   = base.MetricsConfig
	MirrorsConfig   = base.MirrorsConfig
	TimescaleConfig = base.TimescaleConfig
	MQTTConfig      = base.MQTTConfig
	RedisConfig     = base.RedisConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Reading         = base.Reading
	Batch           = base.Batch
	Status          = base.Status
	BatchFunc       = base.BatchFunc
	DeviceClient    = base.DeviceClient
	ChannelValue    = base.ChannelValue
	Persister       = base.Persister
	Mirror          = base.Mirror
	ReadingBuffer   = base.ReadingBuffer
	BatchQueue      = base.BatchQueue
	Observability   = base.Observability
	Field           = base.Field
)

const (
	StatusOK    = base.StatusOK
	StatusStale = base.StatusStale
	StatusError = base.StatusError
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInDevice(d DeviceClient) StreamInOption {
	return base.StreamInDevice(d)
}

func StreamInBuffer(b ReadingBuffer) StreamInOption {
	return base.StreamInBuffer(b)
}

func StreamInQueue(q BatchQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamOutPersister(p Persister) StreamOutOption {
	return base.StreamOutPersister(p)
}

func StreamOutMirror(m Mirror) StreamOutOption {
	return base.StreamOutMirror(m)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn BatchFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithDevice(d DeviceClient) RuntimeOption {
	return base.WithDevice(d)
}

func WithPersister(p Persister) RuntimeOption {
	return base.WithPersister(p)
}

func WithBuffer(b ReadingBuffer) RuntimeOption {
	return base.WithBuffer(b)
}

func WithBatchQueue(q BatchQueue) RuntimeOption {
	return base.WithBatchQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithMirror(m Mirror) RuntimeOption {
	return base.WithMirror(m)
}

// Mirror adapters.
func NewCallbackMirror(name string, fn BatchFunc) Mirror {
	return base.NewCallbackMirror(name, fn)
}

func NewChannelMirror(name string, buffer int) (Mirror, <-chan Batch, func()) {
	return base.NewChannelMirror(name, buffer)
}
