// FlowForge scheduler — публикует запуски flow по расписанию в RabbitMQ.
//
// Требует общего хранилища (redis или postgres) и RABBITMQ_URL.
// Запускается в одном экземпляре.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowforge/internal/config"
	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/mq"
	"github.com/shaiso/flowforge/internal/scheduler"
	"github.com/shaiso/flowforge/internal/store"
	"github.com/shaiso/flowforge/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting flowforge-scheduler")

	if err := run(logger); err != nil {
		logger.Error("flowforge-scheduler failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store == store.BackendMemory {
		return errors.New("scheduler needs a shared store: set FLOWFORGE_STORE to redis or postgres")
	}
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required")
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()
	flows := store.NewFlowStore(kv, store.NewRunStore(kv, cfg.RunHistoryLimit))

	conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer conn.Close()
	if err := mq.SetupTopology(ctx, conn); err != nil {
		return fmt.Errorf("setup topology: %w", err)
	}
	publisher := mq.NewPublisher(conn, logger)

	sched := scheduler.New(scheduler.Config{
		Flows: flows,
		Start: func(ctx context.Context, flow *domain.Flow, data map[string]any) error {
			return publisher.PublishRunRequested(ctx, mq.RunRequestedPayload{
				FlowID:  flow.ID,
				Data:    data,
				Source:  "scheduler",
				Trigger: domain.TriggerSchedule,
			})
		},
		Logger: logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.SchedulerPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http error", "error", err)
			cancel()
		}
	}()

	logger.Info("scheduler loop started", "tick", cfg.SchedulerTick)
	err = sched.Run(ctx, cfg.SchedulerTick)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
