package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier stores slots under a key prefix. With ttl == 0 entries never expire,
// which is how the durable tier is configured.
type RedisTier struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTier(client *redis.Client, prefix string, ttl time.Duration) *RedisTier {
	prefix = strings.TrimSpace(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisTier{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisTier) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

func (r *RedisTier) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
