package device

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ghalamif/VoltLog/internal/ports"
)

// maxBodyBytes bounds how much of a response is read before decoding.
const maxBodyBytes = 1 << 20

// HTTPClient polls the analog input endpoint of an ioLogik module.
type HTTPClient struct {
	cfg        Config
	url        string
	httpClient *http.Client
}

// NewHTTPClient validates cfg and prepares a client with a bounded timeout.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: device: %v", ports.ErrConfiguration, err)
	}
	channels := make([]int, len(cfg.Channels))
	copy(channels, cfg.Channels)
	cfg.Channels = channels

	return &HTTPClient{
		cfg: cfg,
		url: cfg.URL(),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

func (c *HTTPClient) Channels() []int {
	out := make([]int, len(c.cfg.Channels))
	copy(out, c.cfg.Channels)
	return out
}

func (c *HTTPClient) URL() string { return c.url }

func (c *HTTPClient) Fetch(ctx context.Context) ([]ports.ChannelValue, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ports.ErrConfiguration, err)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ports.ClassifyNetError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: device returned %s", ports.ErrNetworkUnavailable, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, ports.ClassifyNetError(err)
	}

	slots, err := decodePayload(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, err
	}
	return resolve(c.cfg.Channels, slots), nil
}

// Probe performs up to cfg.StartupProbe.Attempts fetches, sleeping Delay
// between them, and returns the last error if none succeeded.
func (c *HTTPClient) Probe(ctx context.Context, obs ports.Observability) error {
	attempts := c.cfg.StartupProbe.Attempts
	if attempts <= 0 {
		return nil
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		_, err := c.Fetch(ctx)
		if err == nil {
			obs.LogInfo("device_connected", ports.Field{Key: "url", Value: c.url})
			return nil
		}
		lastErr = err
		obs.LogError("device_probe_failed", err,
			ports.Field{Key: "attempt", Value: i + 1},
			ports.Field{Key: "url", Value: c.url})
		obs.IncCounter(ports.MetricRetries, 1)
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.StartupProbe.Delay):
		}
	}
	return fmt.Errorf("device unreachable after %d attempts: %w", attempts, lastErr)
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ ports.DeviceClient = (*HTTPClient)(nil)
