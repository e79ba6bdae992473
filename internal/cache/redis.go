package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "loansim:dashboard:"

// RedisCache shares dashboard views across processes through Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. A non-positive ttl stores
// keys without expiry.
func NewRedisCache(opts *redis.Options, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(opts),
		ttl:    ttl,
	}
}

// Ping checks the connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func redisGenKey(userID string) string {
	return redisKeyPrefix + userID + ":gen"
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) expiry() time.Duration {
	if r.ttl < 0 {
		return 0
	}
	return r.ttl
}

func (r *RedisCache) Set(ctx context.Context, userID string, value []byte) error {
	return r.client.Set(ctx, redisKey(userID), value, r.expiry()).Err()
}

func (r *RedisCache) Generation(ctx context.Context, userID string) (uint64, error) {
	gen, err := r.client.Get(ctx, redisGenKey(userID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetIfGeneration watches the generation key so an Invalidate from another
// process between the check and the write aborts the transaction.
func (r *RedisCache) SetIfGeneration(ctx context.Context, userID string, value []byte, gen uint64) (bool, error) {
	genKey := redisGenKey(userID)
	stored := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey(userID), value, r.expiry())
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

func (r *RedisCache) Invalidate(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey(userID))
		pipe.Incr(ctx, redisGenKey(userID))
		return nil
	})
	return err
}
