package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	Timeout         time.Duration `yaml:"timeout"`
	Nodes           []NodeConfig  `yaml:"nodes"`
}

// NodeConfig binds an analog channel to the node that exposes its value.
type NodeConfig struct {
	Channel int    `yaml:"channel"`
	NodeID  string `yaml:"node_id"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "VoltLog"
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	seen := make(map[int]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.NodeID == "" {
			return fmt.Errorf("channel %d: node_id is required", n.Channel)
		}
		if _, err := ua.ParseNodeID(n.NodeID); err != nil {
			return fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
		if _, dup := seen[n.Channel]; dup {
			return fmt.Errorf("duplicate channel %d", n.Channel)
		}
		seen[n.Channel] = struct{}{}
	}
	return nil
}

// Channels returns the channel ids in node order.
func (c *Config) Channels() []int {
	out := make([]int, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		out = append(out, n.Channel)
	}
	return out
}

// Device reads every configured node with a single Read service call per
// Fetch. The session is opened lazily and dropped after transport errors so
// the next tick reconnects.
type Device struct {
	cfg     Config
	nodeIDs []*ua.NodeID

	mu     sync.Mutex
	client *opcua.Client
}

func NewDevice(cfg Config) (*Device, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: opcua: %v", ports.ErrConfiguration, err)
	}
	ids := make([]*ua.NodeID, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		id, err := ua.ParseNodeID(n.NodeID)
		if err != nil {
			return nil, fmt.Errorf("%w: parse node id %q: %v", ports.ErrConfiguration, n.NodeID, err)
		}
		ids = append(ids, id)
	}
	return &Device{cfg: cfg, nodeIDs: ids}, nil
}

func (d *Device) Channels() []int { return d.cfg.Channels() }

func (d *Device) Fetch(ctx context.Context) ([]ports.ChannelValue, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		client, err := d.connect(ctx)
		if err != nil {
			return nil, ports.ClassifyNetError(err)
		}
		d.client = client
	}

	req := &ua.ReadRequest{
		MaxAge:             0,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead:        make([]*ua.ReadValueID, 0, len(d.nodeIDs)),
	}
	for _, id := range d.nodeIDs {
		req.NodesToRead = append(req.NodesToRead, &ua.ReadValueID{
			NodeID:      id,
			AttributeID: ua.AttributeIDValue,
		})
	}

	resp, err := d.client.Read(ctx, req)
	if err != nil {
		d.dropLocked()
		return nil, ports.ClassifyNetError(err)
	}
	return resolveResults(d.cfg.Nodes, resp)
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.client.Close(ctx)
	d.client = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Device) connect(ctx context.Context) (*opcua.Client, error) {
	client, err := opcua.NewClient(d.cfg.Endpoint, d.buildClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	return client, nil
}

func (d *Device) dropLocked() {
	if d.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = d.client.Close(ctx)
	d.client = nil
}

func (d *Device) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(d.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(d.cfg.SecurityPolicy)),
		opcua.ApplicationName(d.cfg.ApplicationName),
		opcua.RequestTimeout(d.cfg.Timeout),
	}
	if d.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(d.cfg.Username, d.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

// resolveResults maps a Read response onto channel values. A response whose
// result count does not match the request is a malformed envelope.
func resolveResults(nodes []NodeConfig, resp *ua.ReadResponse) ([]ports.ChannelValue, error) {
	if resp == nil || len(resp.Results) != len(nodes) {
		return nil, fmt.Errorf("%w: expected %d results", ports.ErrMalformedResponse, len(nodes))
	}
	out := make([]ports.ChannelValue, 0, len(nodes))
	for i, n := range nodes {
		cv := ports.ChannelValue{ChannelID: n.Channel}
		dv := resp.Results[i]
		switch {
		case dv == nil:
			cv.Status = domain.StatusError
			cv.Err = errors.New("empty data value")
		case dv.Status != ua.StatusOK:
			cv.Status = domain.StatusError
			cv.Err = fmt.Errorf("node %s: %s", n.NodeID, dv.Status)
		default:
			fv, ok := variantToFloat(dv.Value)
			if !ok {
				cv.Status = domain.StatusError
				cv.Err = fmt.Errorf("node %s: unsupported type", n.NodeID)
				break
			}
			cv.Value = fv
			cv.Status = domain.StatusOK
		}
		out = append(out, cv)
	}
	return out, nil
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.DeviceClient = (*Device)(nil)
