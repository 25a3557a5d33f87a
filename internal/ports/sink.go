package ports

import (
	"context"
	"time"

	"github.com/ghalamif/VoltLog/internal/domain"
)

// Persister durably appends batches. Append returns only after the batch has
// been flushed to stable storage or failed.
type Persister interface {
	Append(b domain.Batch) error
	RecordFailure(ts time.Time, err error) error
	LastTimestamp() time.Time
	Close() error
}

// Mirror receives a copy of every persisted batch (SQL, MQTT, Redis...).
type Mirror interface {
	WriteBatch(ctx context.Context, b domain.Batch) error
	Name() string
	Close() error
}
