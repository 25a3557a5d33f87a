package ports

import "time"

type Policy struct {
	MaxQueueLen int           `yaml:"max_queue_len"`
	IdleSleep   time.Duration `yaml:"idle_sleep"`

	OnQueueFull string `yaml:"on_queue_full"` // "drop", "block"
}
