package ringbuffer

import (
	"sort"
	"sync"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// ring is a fixed-capacity circular sequence of readings for one channel.
type ring struct {
	data  []domain.Reading
	start int
	size  int
}

func (r *ring) push(rd domain.Reading) {
	c := len(r.data)
	if r.size < c {
		r.data[(r.start+r.size)%c] = rd
		r.size++
		return
	}
	r.data[r.start] = rd
	r.start = (r.start + 1) % c
}

func (r *ring) copyOut() []domain.Reading {
	out := make([]domain.Reading, r.size)
	c := len(r.data)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(r.start+i)%c]
	}
	return out
}

// Buffer keeps the most recent readings per channel. A whole batch is applied
// under one write lock so readers never observe half a cycle.
type Buffer struct {
	mu       sync.RWMutex
	cap      int
	channels []int
	rings    map[int]*ring
}

func New(capacity int, channels []int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	b := &Buffer{
		cap:   capacity,
		rings: make(map[int]*ring, len(channels)),
	}
	for _, ch := range channels {
		b.ensureLocked(ch)
	}
	return b
}

func (b *Buffer) ensureLocked(ch int) *ring {
	r, ok := b.rings[ch]
	if !ok {
		r = &ring{data: make([]domain.Reading, b.cap)}
		b.rings[ch] = r
		b.channels = append(b.channels, ch)
	}
	return r
}

func (b *Buffer) Push(batch domain.Batch) {
	if len(batch.Readings) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rd := range batch.Readings {
		b.ensureLocked(rd.ChannelID).push(rd)
	}
}

// Snapshot returns a copy of the channel history, most recent last.
func (b *Buffer) Snapshot(channelID int) []domain.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rings[channelID]
	if !ok {
		return nil
	}
	return r.copyOut()
}

func (b *Buffer) SnapshotAll() map[int][]domain.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[int][]domain.Reading, len(b.rings))
	for ch, r := range b.rings {
		out[ch] = r.copyOut()
	}
	return out
}

// Channels returns known channel ids in the order they were first seen.
func (b *Buffer) Channels() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]int, len(b.channels))
	copy(out, b.channels)
	return out
}

// SortedChannels is Channels in ascending order.
func (b *Buffer) SortedChannels() []int {
	out := b.Channels()
	sort.Ints(out)
	return out
}

func (b *Buffer) Capacity() int { return b.cap }

// Len returns the number of readings held for a channel.
func (b *Buffer) Len(channelID int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if r, ok := b.rings[channelID]; ok {
		return r.size
	}
	return 0
}

var _ ports.ReadingBuffer = (*Buffer)(nil)
