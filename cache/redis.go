package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "passageway:embeddings:"

// RedisCache shares embeddings across instances. A ttl of zero stores
// entries without expiry.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// OpenRedisCache connects to the configured server. The client dials
// lazily, on first use.
func OpenRedisCache(cfg RedisConfig, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return NewRedisCache(client, ttl)
}

func (c *RedisCache) Get(ctx context.Context, key string) ([][]float32, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		// Convert key not found into returning false and nil err.
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, err
	}

	embeddings, err := unmarshalEmbeddings(data)
	if err != nil {
		return nil, false, err
	}

	return embeddings, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, embeddings [][]float32) error {
	data, err := marshalEmbeddings(embeddings)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
