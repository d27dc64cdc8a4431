package store

import (
	"context"
	"fmt"
)

// Бакеты, используемые FlowStore и RunStore.
const (
	BucketFlows = "flows"
	BucketRuns  = "runs"
)

// Store — key-value хранилище с явным жизненным циклом.
//
// Значения — сериализованный JSON. Get и Delete возвращают ErrNotFound
// для отсутствующего ключа; сбои backend'а оборачиваются в ErrStorage.
type Store interface {
	// Open подключается к backend'у. Вызывается один раз до остальных методов.
	Open(ctx context.Context) error

	// Close освобождает ресурсы.
	Close() error

	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Set(ctx context.Context, bucket, key string, value []byte) error

	// List возвращает все значения бакета (key → value).
	List(ctx context.Context, bucket string) (map[string][]byte, error)

	Delete(ctx context.Context, bucket, key string) error
}

// Backend — тип backend'а хранилища.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Options — параметры создания хранилища.
type Options struct {
	// Backend — memory, redis или postgres.
	Backend Backend

	// RedisURL — адрес Redis (redis://host:port/db).
	RedisURL string

	// DatabaseURL — DSN PostgreSQL.
	DatabaseURL string
}

// New создаёт хранилище по типу backend'а. Хранилище ещё не открыто.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(RedisOptions{URL: opts.RedisURL}), nil
	case BackendPostgres:
		return NewPostgresStore(opts.DatabaseURL), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q", opts.Backend)
	}
}

// Open создаёт и открывает хранилище.
func Open(ctx context.Context, opts Options) (Store, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
