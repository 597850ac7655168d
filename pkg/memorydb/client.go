package memorydb

import (
	"context"
	"time"

	"billing-api/config"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client redis.UniversalClient
}

func NewRedisClient(ctx context.Context, cfg *config.Config) (*RedisClient, error) {
	// Use UniversalClient which works with both standalone and cluster Redis
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{cfg.Redis.Addr},
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		ReadTimeout:  time.Second * 5,
		WriteTimeout: time.Second * 5,
		PoolSize:     10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisClient{client: client}, nil
}

// NewRedisClientFromAddr builds a client against a bare address, no auth.
func NewRedisClientFromAddr(ctx context.Context, addr string) (*RedisClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisClient{client: client}, nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// LPush appends a value to the head of a Redis list
func (r *RedisClient) LPush(ctx context.Context, key string, value interface{}) error {
	return r.client.LPush(ctx, key, value).Err()
}

// BRPop pops from the tail of a Redis list, blocking up to timeout.
// Returns redis.Nil when the timeout elapses with no value.
func (r *RedisClient) BRPop(ctx context.Context, timeout time.Duration, key string) ([]string, error) {
	return r.client.BRPop(ctx, timeout, key).Result()
}

// LLen returns the length of a Redis list
func (r *RedisClient) LLen(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}

// Del deletes a key from Redis
func (r *RedisClient) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}
