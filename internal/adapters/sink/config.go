package sink

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// TimescaleConfig enables the SQL mirror when ConnString is set.
type TimescaleConfig struct {
	Driver     string `yaml:"driver"` // "postgres" (lib/pq) or "pgx"
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func (c *TimescaleConfig) Enabled() bool { return c.ConnString != "" }

func (c *TimescaleConfig) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = "postgres"
	}
	if c.Table == "" {
		c.Table = "voltage_readings"
	}
}

func (c *TimescaleConfig) Validate() error {
	if c.Driver != "postgres" && c.Driver != "pgx" {
		return fmt.Errorf("timescale.driver %q: want postgres or pgx", c.Driver)
	}
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("timescale.table %q is not a valid identifier", c.Table)
	}
	return nil
}

// MQTTConfig enables the MQTT mirror when Server is set.
type MQTTConfig struct {
	Server   string `yaml:"server"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

func (c *MQTTConfig) Enabled() bool { return c.Server != "" }

func (c *MQTTConfig) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "voltlog"
	}
	if c.Topic == "" {
		c.Topic = "voltlog/readings"
	}
}

func (c *MQTTConfig) Validate() error {
	if c.QoS > 2 {
		return errors.New("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// RedisConfig enables the last-value mirror when Addr is set.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

func (c *RedisConfig) ApplyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "voltlog:last:"
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
}

func (c *RedisConfig) Validate() error {
	if c.KeyPrefix == "" {
		return errors.New("redis.key_prefix must not be empty")
	}
	if c.TTL < 0 {
		return fmt.Errorf("redis.ttl %s must not be negative", c.TTL)
	}
	if c.DB < 0 {
		return fmt.Errorf("redis.db %d must not be negative", c.DB)
	}
	return nil
}
