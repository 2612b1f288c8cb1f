package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMode selects the Redis dispatch style (spec.md 6).
type RedisMode string

const (
	RedisPublish   RedisMode = "publish"
	RedisSetWithTTL RedisMode = "set_ttl"
	RedisStreamXAdd RedisMode = "stream_xadd"
)

// RedisConfig configures RedisDriver.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Mode     RedisMode
	Key      string // channel name, key, or stream name depending on Mode
	TTL      time.Duration
}

// RedisDriver dispatches measurements to Redis per spec.md 4.9/6.
type RedisDriver struct {
	cfg    RedisConfig
	client *redis.Client
}

func NewRedisDriver(cfg RedisConfig) *RedisDriver {
	return &RedisDriver{cfg: cfg}
}

func (d *RedisDriver) Initialize(ctx context.Context) error {
	d.client = redis.NewClient(&redis.Options{
		Addr:     d.cfg.Addr,
		Password: d.cfg.Password,
		DB:       d.cfg.DB,
	})
	return d.client.Ping(ctx).Err()
}

func (d *RedisDriver) Dispatch(ctx context.Context, m Measurement) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("action/redis: marshal measurement: %w", err)
	}

	switch d.cfg.Mode {
	case RedisSetWithTTL:
		return d.client.Set(ctx, d.cfg.Key, payload, d.cfg.TTL).Err()
	case RedisStreamXAdd:
		return d.client.XAdd(ctx, &redis.XAddArgs{
			Stream: d.cfg.Key,
			Values: map[string]any{"measurement": payload},
		}).Err()
	default: // RedisPublish
		return d.client.Publish(ctx, d.cfg.Key, payload).Err()
	}
}

func (d *RedisDriver) HealthCheck(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisDriver) Shutdown(ctx context.Context) error {
	return d.client.Close()
}
