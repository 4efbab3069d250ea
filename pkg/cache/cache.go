package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key or hash field does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Store is a small key-value/hash persistence surface. Values are JSON
// encoded unless passed as string/[]byte.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	HSet(ctx context.Context, key, field string, value interface{}) error
	// HSetNX writes the field only if it does not exist yet.
	HSetNX(ctx context.Context, key, field string, value interface{}) error
	HGet(ctx context.Context, key, field string, dest interface{}) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Health(ctx context.Context) error
	Close() error
}
