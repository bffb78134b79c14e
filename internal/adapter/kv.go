package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV defines the key-value store operations used for nonces and token
// bookkeeping. Backed by Redis in production; tests use an in-memory fake.
type KV interface {
	// SetEX stores a value with a TTL
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDel atomically reads and deletes a key. Returns ("", false, nil)
	// when the key does not exist.
	GetDel(ctx context.Context, key string) (string, bool, error)

	// Get reads a key. Returns ("", false, nil) when the key does not exist.
	Get(ctx context.Context, key string) (string, bool, error)

	// Del removes a key; deleting a missing key is not an error
	Del(ctx context.Context, key string) error

	// Exists reports whether a key is present
	Exists(ctx context.Context, key string) (bool, error)

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the connection
	Close() error
}

// RealKV wraps the actual Redis client
type RealKV struct {
	client *redis.Client
}

// NewRedisKV creates a Redis-backed KV store
func NewRedisKV(addr, password string, db int) KV {
	return &RealKV{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (r *RealKV) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RealKV) GetDel(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RealKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RealKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RealKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RealKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RealKV) Close() error {
	return r.client.Close()
}
