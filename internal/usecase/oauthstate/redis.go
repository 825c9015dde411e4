package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratekit:oauth:state:"

// RedisNonceStore shares outstanding state ids between instances. Consume is a
// single GETDEL, so a state redeems at most once cluster-wide.
type RedisNonceStore struct {
	rdb redis.Cmdable
}

func NewRedisNonceStore(rdb redis.Cmdable) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb}
}

func (s *RedisNonceStore) Put(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, redisKeyPrefix+id, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("redis setnx: state id %s already issued", id)
	}
	return nil
}

func (s *RedisNonceStore) Consume(ctx context.Context, id string) (bool, error) {
	_, err := s.rdb.GetDel(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis getdel: %w", err)
	}
	return true, nil
}
