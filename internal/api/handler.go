package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shaiso/flowforge/internal/events"
	"github.com/shaiso/flowforge/internal/mq"
	"github.com/shaiso/flowforge/internal/orchestrator"
	"github.com/shaiso/flowforge/internal/store"
	"github.com/shaiso/flowforge/internal/telemetry"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flows      *store.FlowStore
	runs       *store.RunStore
	controller *orchestrator.Controller
	stream     *events.Broadcaster
	publisher  *mq.Publisher
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	now        func() time.Time

	// baseCtx — родительский контекст фоновых run; отменяется при остановке.
	baseCtx context.Context

	// reportedDrops — сколько отброшенных событий уже учтено в метрике.
	reportedDrops atomic.Int64
}

// Config — конфигурация для создания Handler.
type Config struct {
	Flows      *store.FlowStore
	Runs       *store.RunStore
	Controller *orchestrator.Controller

	// Stream — источник событий для /runs/stream (опционально).
	// Должен быть подписан на события Controller.
	Stream *events.Broadcaster

	// Publisher — RabbitMQ publisher для /flows/{id}/events (опционально).
	Publisher *mq.Publisher

	Metrics *telemetry.Metrics

	// BaseContext — контекст фоновых run (default: context.Background()).
	BaseContext context.Context

	// Clock — источник времени для статистики (default: time.Now).
	Clock func() time.Time

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}

	return &Handler{
		flows:      cfg.Flows,
		runs:       cfg.Runs,
		controller: cfg.Controller,
		stream:     cfg.Stream,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		logger:     logger,
		now:        now,
		baseCtx:    base,
	}
}
