package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keeps JSON records in a list capped at Capacity entries, newest
// at the head.
type Redis struct {
	client   *redis.Client
	key      string
	capacity int
}

func OpenRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ledger: redis ping %s: %w", cfg.RedisAddr, err)
	}
	return NewRedis(client, cfg.Key, cfg.Capacity), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, key string, capacity int) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Redis{client: client, key: key, capacity: capacity}
}

func (r *Redis) Append(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, payload)
		pipe.LTrim(ctx, r.key, 0, int64(r.capacity-1))
		return nil
	})
	return err
}

func (r *Redis) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > r.capacity {
		limit = r.capacity
	}
	raw, err := r.client.LRange(ctx, r.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("ledger: decode redis entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
