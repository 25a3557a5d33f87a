package device

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultPath    = "/api/slot/0/io/ai"
	DefaultAccept  = "vdn.dac.v1"
	DefaultTimeout = time.Second
)

// Config describes how to reach the ioLogik REST API.
type Config struct {
	Scheme   string            `yaml:"scheme"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Path     string            `yaml:"path"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	Channels []int             `yaml:"channels"`

	StartupProbe ProbeConfig `yaml:"startup_probe"`
}

// ProbeConfig controls the connectivity check performed before polling starts.
type ProbeConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	Required bool          `yaml:"required"`
}

func (c *Config) ApplyDefaults() {
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.Port == 0 {
		c.Port = 80
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	if _, ok := c.Headers["Accept"]; !ok {
		c.Headers["Accept"] = DefaultAccept
	}
	if _, ok := c.Headers["Content-Type"]; !ok {
		c.Headers["Content-Type"] = "application/json"
	}
	if c.StartupProbe.Delay <= 0 {
		c.StartupProbe.Delay = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", c.Scheme)
	}
	if len(c.Channels) == 0 {
		return errors.New("at least one channel must be configured")
	}
	seen := make(map[int]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		if ch < 0 {
			return fmt.Errorf("invalid channel %d", ch)
		}
		if _, dup := seen[ch]; dup {
			return fmt.Errorf("duplicate channel %d", ch)
		}
		seen[ch] = struct{}{}
	}
	return nil
}

// URL returns the full endpoint polled on every tick.
func (c *Config) URL() string {
	u := url.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   c.Path,
	}
	return u.String()
}
