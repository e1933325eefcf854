package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/ports"
)

// RedisRepository stores the document as a plain string value.
type RedisRepository struct {
	client *redis.Client
	key    string
}

// NewRedisRepository creates a repository for prefix+name
func NewRedisRepository(client *redis.Client, prefix, name string) *RedisRepository {
	return &RedisRepository{client: client, key: prefix + name}
}

var _ ports.DocumentRepository = (*RedisRepository)(nil)

// Key returns the Redis key holding the document
func (r *RedisRepository) Key() string { return r.key }

func (r *RedisRepository) Location() string {
	return fmt.Sprintf("redis://%s/%s", r.client.Options().Addr, r.key)
}

func (r *RedisRepository) Load(ctx context.Context) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entities.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}
	return val, nil
}

func (r *RedisRepository) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}
