package ports

import (
	"context"

	"github.com/ghalamif/VoltLog/internal/domain"
)

// ChannelValue is one decoded channel of a device response.
type ChannelValue struct {
	ChannelID int
	Value     float64
	Status    domain.Status
	Err       error
}

// DeviceClient pulls the current value of every configured channel.
// Implementations return exactly one ChannelValue per configured channel, in
// configured order, or an error and no values at all. They never retry.
type DeviceClient interface {
	Fetch(ctx context.Context) ([]ChannelValue, error)
	Channels() []int
	Close() error
}
