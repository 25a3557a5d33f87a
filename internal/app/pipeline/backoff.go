package pipeline

import "time"

// BackoffConfig bounds the delay between attempts after a failed poll.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Multiplier float64       `yaml:"multiplier"`
	Max        time.Duration `yaml:"max"`
}

func (c *BackoffConfig) ApplyDefaults() {
	if c.Initial <= 0 {
		c.Initial = time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.Max <= 0 {
		c.Max = 30 * time.Second
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
}

type backoff struct {
	cfg     BackoffConfig
	current time.Duration
}

// next returns the delay before the following attempt. Delays never shrink
// until reset and never exceed Max.
func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.cfg.Initial
		return b.current
	}
	grown := time.Duration(float64(b.current) * b.cfg.Multiplier)
	if grown > b.cfg.Max || grown < b.current {
		grown = b.cfg.Max
	}
	b.current = grown
	return b.current
}

func (b *backoff) reset() { b.current = 0 }

func (b *backoff) active() bool { return b.current > 0 }
