package queue

import (
	"sync"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// MemQueue is a bounded in-memory FIFO of batches waiting for the writer.
type MemQueue struct {
	mu    sync.Mutex
	data  []domain.Batch
	cap   int
	ready chan struct{}
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data:  make([]domain.Batch, 0, capacity),
		cap:   capacity,
		ready: make(chan struct{}, 1),
	}
}

func (q *MemQueue) Enqueue(b domain.Batch) bool {
	q.mu.Lock()
	if len(q.data) >= q.cap {
		q.mu.Unlock()
		return false
	}
	q.data = append(q.data, b)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *MemQueue) Dequeue() (domain.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return domain.Batch{}, false
	}
	b := q.data[0]
	q.data = append(q.data[:0], q.data[1:]...)
	return b, true
}

// Ready is signalled after an enqueue; the writer waits on it instead of
// spinning.
func (q *MemQueue) Ready() <-chan struct{} { return q.ready }

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.BatchQueue = (*MemQueue)(nil)
