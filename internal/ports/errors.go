package ports

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrTimeout            = errors.New("timeout")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrPersistenceWrite   = errors.New("persistence write failure")
	ErrConfiguration      = errors.New("configuration error")
	ErrQueueFull          = errors.New("batch queue full")
)

// ErrorKind maps an error onto a stable label used in logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetworkUnavailable):
		return "network_unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrPersistenceWrite):
		return "persistence_write"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	default:
		return "unknown"
	}
}

// ClassifyNetError wraps a transport error with ErrTimeout or
// ErrNetworkUnavailable.
func ClassifyNetError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetworkUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
}
