package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

// Redis cache shared between API replicas
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

var _ Cache = (*Redis)(nil)

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StorageError{Op: "cache.get", Err: errors.Wrapf(err, "redis get %s", key)}
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return &domain.StorageError{Op: "cache.set", Err: errors.Wrapf(err, "redis set %s", key)}
	}
	return nil
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, r.prefix+key).Result()
	if err != nil {
		return 0, &domain.StorageError{Op: "cache.incr", Err: errors.Wrapf(err, "redis incr %s", key)}
	}
	return n, nil
}

func (r *Redis) Counter(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, r.prefix+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, &domain.StorageError{Op: "cache.counter", Err: errors.Wrapf(err, "redis get %s", key)}
	}
	return n, nil
}

// Ping checks connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "redis ping")
}
