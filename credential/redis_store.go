package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures on Write and Clear.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisStore keeps the pair under one Redis key. Each operation is a single
// command (GET, SET, DEL), which makes it atomic for concurrent readers.
//
// An optional ttl bounds how long an abandoned pair survives in Redis; it is
// storage hygiene and not used for expiry detection.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// NewRedisStore creates a [RedisStore]. An empty key selects [DefaultKey];
// ttl <= 0 stores the pair without expiration.
func NewRedisStore(client redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis: client,
		key:   key,
		ttl:   ttl,
	}
}

// Key returns the Redis key of the slot.
func (s *RedisStore) Key() string {
	return s.key
}

// Read fetches and decodes the slot. Redis errors read as absent.
func (s *RedisStore) Read(ctx context.Context) (Pair, bool) {
	if s == nil || s.redis == nil {
		return Pair{}, false
	}
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		return Pair{}, false
	}
	p, err := Decode(data)
	if err != nil {
		return Pair{}, false
	}
	return p, true
}

// Write replaces the slot with one SET.
func (s *RedisStore) Write(ctx context.Context, p Pair) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if s == nil || s.redis == nil {
		return ErrRedisUnavailable
	}
	if err := s.redis.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear deletes the slot. Deleting a missing key is not an error.
func (s *RedisStore) Clear(ctx context.Context) error {
	if s == nil || s.redis == nil {
		return ErrRedisUnavailable
	}
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
