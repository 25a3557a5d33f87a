package ports

import "github.com/ghalamif/VoltLog/internal/domain"

// BatchQueue decouples the acquisition loop from the writer.
type BatchQueue interface {
	Enqueue(b domain.Batch) bool
	Dequeue() (domain.Batch, bool)
	Len() int
}
