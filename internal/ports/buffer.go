package ports

import "github.com/ghalamif/VoltLog/internal/domain"

// ReadingBuffer keeps the recent history per channel for the dashboard.
type ReadingBuffer interface {
	Push(b domain.Batch)
	Snapshot(channelID int) []domain.Reading
	SnapshotAll() map[int][]domain.Reading
	Channels() []int
	Capacity() int
}
