// FlowForge API — HTTP API, выполнение run и потребитель очереди запусков.
//
// Без RABBITMQ_URL расписания обслуживаются встроенным планировщиком,
// с RabbitMQ — отдельным процессом flowforge-scheduler.
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

	"github.com/shaiso/flowforge/internal/api"
	"github.com/shaiso/flowforge/internal/config"
	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/events"
	"github.com/shaiso/flowforge/internal/mq"
	"github.com/shaiso/flowforge/internal/orchestrator"
	"github.com/shaiso/flowforge/internal/scheduler"
	"github.com/shaiso/flowforge/internal/store"
	"github.com/shaiso/flowforge/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting flowforge-api")

	if err := run(logger); err != nil {
		logger.Error("flowforge-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище
	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()
	logger.Info("store opened", "backend", cfg.Store)

	runs := store.NewRunStore(kv, cfg.RunHistoryLimit)
	flows := store.NewFlowStore(kv, runs)

	// Выполнение
	metrics := telemetry.NewMetrics(nil)
	stream := events.NewBroadcaster()
	controller := orchestrator.New(orchestrator.Config{
		Registry:         cfg.Registry(logger),
		Faults:           cfg.Faults(),
		Runs:             runs,
		Subscribers:      []events.Subscriber{stream},
		Parallel:         cfg.RunParallel,
		StrictProperties: cfg.StrictProperties,
		Metrics:          metrics,
		Logger:           logger,
	})
	if cfg.Demo.Enabled {
		logger.Warn("demo mode: nodes are simulated", "failure_rate", cfg.Demo.FailureRate)
	}

	// RabbitMQ (опционально)
	var publisher *mq.Publisher
	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return fmt.Errorf("setup topology: %w", err)
		}
		logger.Info("rabbitmq ready", "topology", mq.TopologyInfo())

		publisher = mq.NewPublisher(conn, logger)
		forward, unsubscribe := stream.Subscribe(256)
		defer unsubscribe()
		go publisher.ForwardEvents(ctx, forward)

		start := func(ctx context.Context, flow *domain.Flow, trigger domain.TriggerType, data map[string]any) (*domain.Run, error) {
			return controller.Start(ctx, flow, orchestrator.StartOptions{Trigger: trigger, TriggerData: data})
		}
		consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Handler:  mq.RunRequestHandler(flows, start, logger),
			Prefetch: 4,
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	} else {
		sched := scheduler.New(scheduler.Config{
			Flows: flows,
			Start: func(_ context.Context, flow *domain.Flow, data map[string]any) error {
				go func() {
					if _, err := controller.Start(ctx, flow, orchestrator.StartOptions{
						Trigger:     domain.TriggerSchedule,
						TriggerData: data,
					}); err != nil {
						logger.Error("scheduled run failed to start", "flow_id", flow.ID, "error", err)
					}
				}()
				return nil
			},
			Logger: logger.With("component", "scheduler"),
		})
		go func() { _ = sched.Run(ctx, cfg.SchedulerTick) }()
		logger.Info("embedded scheduler started", "tick", cfg.SchedulerTick)
	}

	// HTTP
	handler := api.NewHandler(api.Config{
		Flows:       flows,
		Runs:        runs,
		Controller:  controller,
		Stream:      stream,
		Publisher:   publisher,
		Metrics:     metrics,
		BaseContext: ctx,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s active_runs=%d", time.Since(startTime).Round(time.Second), controller.ActiveRunsCount())
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}
