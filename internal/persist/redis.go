package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStorage stores blobs as plain redis string values.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to addr and verifies the connection with a PING.
func NewRedisStorage(ctx context.Context, addr, password string, db int, prefix string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStorage{client: client, prefix: prefix}, nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
