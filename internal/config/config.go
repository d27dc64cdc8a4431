package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/flowforge/internal/store"
)

// Config — настройки процессов FlowForge из переменных окружения.
type Config struct {
	// Store — backend хранилища (FLOWFORGE_STORE: memory, redis, postgres).
	Store store.Backend

	RedisURL    string
	DatabaseURL string

	// RabbitMQURL — адрес брокера. Пустой — RabbitMQ не используется.
	RabbitMQURL string

	APIPort       string
	SchedulerPort string
	SchedulerTick time.Duration

	// RunHistoryLimit — сколько runs хранить.
	RunHistoryLimit int

	// RunParallel — выполнять независимые узлы параллельно.
	RunParallel bool

	// StrictProperties — проверять свойства узлов перед запуском.
	StrictProperties bool

	// Demo — симулировать все узлы вместо реального выполнения.
	Demo Demo

	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// Demo — настройки демо-режима.
type Demo struct {
	Enabled     bool
	FailureRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// StoreOptions возвращает параметры открытия хранилища.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.Store,
		RedisURL:    c.RedisURL,
		DatabaseURL: c.DatabaseURL,
	}
}

// Load подгружает .env файлы (по умолчанию ./.env), не перезаписывая
// уже заданные переменные, и читает конфигурацию из окружения.
// Отсутствующий файл не является ошибкой.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv читает конфигурацию через getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Store:            store.Backend(strings.ToLower(r.str("FLOWFORGE_STORE", string(store.BackendMemory)))),
		RedisURL:         r.str("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:      r.str("DB_URL", ""),
		RabbitMQURL:      r.str("RABBITMQ_URL", ""),
		APIPort:          r.str("API_PORT", "8080"),
		SchedulerPort:    r.str("SCHED_PORT", "8081"),
		SchedulerTick:    r.duration("SCHEDULER_TICK", 30*time.Second),
		RunHistoryLimit:  r.integer("RUN_HISTORY_LIMIT", store.DefaultRunHistoryLimit),
		RunParallel:      r.boolean("RUN_PARALLEL", false),
		StrictProperties: r.boolean("RUN_STRICT_PROPERTIES", false),
		Demo: Demo{
			Enabled:     r.boolean("DEMO_MODE", false),
			FailureRate: r.float("DEMO_FAILURE_RATE", 0),
			MinDelay:    r.duration("DEMO_MIN_DELAY", 300*time.Millisecond),
			MaxDelay:    r.duration("DEMO_MAX_DELAY", 1500*time.Millisecond),
		},
		OpenAIAPIKey:  r.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL: r.str("OPENAI_BASE_URL", ""),
	}
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	switch c.Store {
	case store.BackendMemory, store.BackendRedis, store.BackendPostgres:
	default:
		return fmt.Errorf("FLOWFORGE_STORE: unknown backend %q", c.Store)
	}
	if c.SchedulerTick <= 0 {
		return errors.New("SCHEDULER_TICK must be positive")
	}
	if c.RunHistoryLimit <= 0 {
		return errors.New("RUN_HISTORY_LIMIT must be positive")
	}
	if c.Demo.FailureRate < 0 || c.Demo.FailureRate > 1 {
		return fmt.Errorf("DEMO_FAILURE_RATE must be within [0, 1], got %v", c.Demo.FailureRate)
	}
	if c.Demo.MaxDelay < c.Demo.MinDelay {
		return errors.New("DEMO_MAX_DELAY must not be less than DEMO_MIN_DELAY")
	}
	return nil
}

// reader накапливает ошибки разбора переменных.
type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
