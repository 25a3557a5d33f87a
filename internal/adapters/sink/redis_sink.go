package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// RedisMirror keeps the latest reading of each channel under
// <prefix><channel> so dashboards outside this process can read it.
type RedisMirror struct {
	rdb     redis.Cmdable
	closeFn func() error
	cfg     RedisConfig
}

func NewRedisMirror(ctx context.Context, cfg RedisConfig) (*RedisMirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	m := newRedisMirror(rdb, cfg)
	m.closeFn = rdb.Close
	return m, nil
}

func newRedisMirror(rdb redis.Cmdable, cfg RedisConfig) *RedisMirror {
	return &RedisMirror{rdb: rdb, cfg: cfg}
}

func (m *RedisMirror) Name() string { return "redis" }

func (m *RedisMirror) WriteBatch(ctx context.Context, b domain.Batch) error {
	for _, r := range b.Readings {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		key := m.cfg.KeyPrefix + strconv.Itoa(r.ChannelID)
		if err := m.rdb.Set(ctx, key, payload, m.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", key, err)
		}
	}
	return nil
}

func (m *RedisMirror) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	return nil
}

var _ ports.Mirror = (*RedisMirror)(nil)
