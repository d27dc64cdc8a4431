package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const defaultRedisPrefix = "flowforge:"

// RedisOptions — параметры RedisStore.
type RedisOptions struct {
	// URL — адрес Redis (default: redis://localhost:6379/0).
	URL string

	// Prefix — префикс ключей (default: "flowforge:").
	Prefix string

	// Client — готовый клиент (если задан, URL игнорируется).
	Client *redis.Client
}

// RedisStore — хранилище в Redis: один hash на бакет.
type RedisStore struct {
	opts   RedisOptions
	client *redis.Client
}

// NewRedisStore создаёт новый RedisStore.
func NewRedisStore(opts RedisOptions) *RedisStore {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379/0"
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	return &RedisStore{opts: opts}
}

// Open реализует Store: создаёт клиент и проверяет соединение.
func (s *RedisStore) Open(ctx context.Context) error {
	client := s.opts.Client
	if client == nil {
		ropts, err := redis.ParseURL(s.opts.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(ropts)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return storageErr("redis ping", err)
	}
	s.client = client
	return nil
}

// Close реализует Store.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *RedisStore) key(bucket string) string {
	return s.opts.Prefix + bucket
}

// Get реализует Store.
func (s *RedisStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.client == nil {
		return nil, ErrClosed
	}
	v, err := s.client.HGet(ctx, s.key(bucket), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("redis hget", err)
	}
	return v, nil
}

// Set реализует Store.
func (s *RedisStore) Set(ctx context.Context, bucket, key string, value []byte) error {
	if s.client == nil {
		return ErrClosed
	}
	if err := s.client.HSet(ctx, s.key(bucket), key, value).Err(); err != nil {
		return storageErr("redis hset", err)
	}
	return nil
}

// List реализует Store.
func (s *RedisStore) List(ctx context.Context, bucket string) (map[string][]byte, error) {
	if s.client == nil {
		return nil, ErrClosed
	}
	all, err := s.client.HGetAll(ctx, s.key(bucket)).Result()
	if err != nil {
		return nil, storageErr("redis hgetall", err)
	}
	out := make(map[string][]byte, len(all))
	for k, v := range all {
		out[k] = []byte(v)
	}
	return out, nil
}

// Delete реализует Store.
func (s *RedisStore) Delete(ctx context.Context, bucket, key string) error {
	if s.client == nil {
		return ErrClosed
	}
	n, err := s.client.HDel(ctx, s.key(bucket), key).Result()
	if err != nil {
		return storageErr("redis hdel", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
