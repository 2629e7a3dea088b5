package revocation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kvasnecov/institute_platform/pkg/logging"
)

// RedisStore keeps revocation entries in Redis. Backend failures never
// surface to callers: the store flips to its in-process fallback map and
// stays there, logging the switch once.
type RedisStore struct {
	client   *redis.Client
	fallback *MemoryStore
	degraded atomic.Bool
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.MaxRetries = 3
	return &RedisStore{
		client:   redis.NewClient(opts),
		fallback: NewMemoryStore(),
	}, nil
}

func (s *RedisStore) Store(ctx context.Context, userID, tokenID string, ttl time.Duration) error {
	if s.degraded.Load() {
		return s.fallback.Store(ctx, userID, tokenID, ttl)
	}
	if err := s.client.Set(ctx, key(userID, tokenID), "1", ttl).Err(); err != nil {
		s.degrade(ctx, err)
		return s.fallback.Store(ctx, userID, tokenID, ttl)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, userID, tokenID string) (bool, error) {
	if s.degraded.Load() {
		return s.fallback.Exists(ctx, userID, tokenID)
	}
	n, err := s.client.Exists(ctx, key(userID, tokenID)).Result()
	if err != nil {
		s.degrade(ctx, err)
		return s.fallback.Exists(ctx, userID, tokenID)
	}
	return n > 0, nil
}

func (s *RedisStore) Revoke(ctx context.Context, userID, tokenID string) (bool, error) {
	if s.degraded.Load() {
		return s.fallback.Revoke(ctx, userID, tokenID)
	}
	// DEL is atomic per key, so concurrent consumers of the same token
	// race on it and only one gets removed=true.
	n, err := s.client.Del(ctx, key(userID, tokenID)).Result()
	if err != nil {
		s.degrade(ctx, err)
		return s.fallback.Revoke(ctx, userID, tokenID)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	s.fallback.Close()
	return s.client.Close()
}

func (s *RedisStore) degrade(ctx context.Context, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		logging.FromContext(ctx).Error("revocation store degraded to in-memory fallback",
			"error", err)
	}
}
