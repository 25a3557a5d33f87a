package voltlog

import (
	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// Reading is one timestamped sample of one channel.
type Reading = domain.Reading

// Batch is every reading from one poll cycle.
type Batch = domain.Batch

// Status tags a reading as ok, stale or error.
type Status = domain.Status

const (
	StatusOK    = domain.StatusOK
	StatusStale = domain.StatusStale
	StatusError = domain.StatusError
)

// DeviceClient fetches one value per configured channel.
type DeviceClient = ports.DeviceClient

// ChannelValue is a single decoded channel as returned by a DeviceClient.
type ChannelValue = ports.ChannelValue

// Persister durably appends batches.
type Persister = ports.Persister

// Mirror receives a copy of every persisted batch.
type Mirror = ports.Mirror

// ReadingBuffer holds the recent history per channel.
type ReadingBuffer = ports.ReadingBuffer

// BatchQueue decouples acquisition from persistence.
type BatchQueue = ports.BatchQueue

// Observability emits logs and metrics.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

var (
	ErrNetworkUnavailable = ports.ErrNetworkUnavailable
	ErrTimeout            = ports.ErrTimeout
	ErrMalformedResponse  = ports.ErrMalformedResponse
	ErrPersistenceWrite   = ports.ErrPersistenceWrite
	ErrConfiguration      = ports.ErrConfiguration
	ErrQueueFull          = ports.ErrQueueFull
)

// ErrorKind maps an error to the label used in logs and metrics.
func ErrorKind(err error) string { return ports.ErrorKind(err) }
