package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key (or hash) does not exist. Callers must
// treat any other error as a store outage, not as absence.
var ErrNotFound = errors.New("kvstore: key not found")

// Member is one scored entry of a sorted set.
type Member struct {
	Score  float64
	Member string
}

// Store is the operation contract the session manager consumes. Implementations
// must be safe for concurrent use from many request goroutines.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	ZAdd(ctx context.Context, key string, members ...Member) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error

	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	Publish(ctx context.Context, channel, message string) error
}
