package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
	"github.com/shaiso/flowforge/internal/events"
	"github.com/shaiso/flowforge/internal/executor"
	"github.com/shaiso/flowforge/internal/nodes"
	"github.com/shaiso/flowforge/internal/telemetry"
)

// RunStore — хранилище run, в которое Controller записывает результат.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
}

// Controller управляет выполнением run.
//
// Controller — центральный компонент движка, который:
//   - Валидирует flow (при ошибке run не создаётся)
//   - Вычисляет порядок выполнения узлов
//   - Ведёт run по машине состояний pending → running → success/failed/cancelled
//   - Выполняет узлы через Executor (последовательно или параллельно по готовности)
//   - Эмитит события и логи через events.Emitter
//   - Сохраняет завершённый run в RunStore
type Controller struct {
	executor    *executor.Executor
	registry    *nodes.Registry
	runs        RunStore
	subscribers []events.Subscriber

	// Configuration
	parallel bool
	strict   bool
	clock    func() time.Time

	// Active runs — run в процессе выполнения (runID → state)
	activeRuns map[string]*activeRun
	mu         sync.RWMutex

	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// activeRun — выполняющийся run и функция его отмены.
type activeRun struct {
	state  *RunState
	cancel context.CancelFunc
}

// Config — конфигурация Controller.
type Config struct {
	// Registry — реестр типов узлов (если nil — nodes.DefaultRegistry).
	Registry *nodes.Registry

	// Faults — стратегия внедрения сбоев (если nil — nodes.NeverFail).
	Faults nodes.FaultInjector

	// Runs — хранилище run (опционально; без него run не сохраняются).
	Runs RunStore

	// Subscribers — подписчики событий всех run.
	Subscribers []events.Subscriber

	// Parallel — запускать узел, как только завершены его предшественники,
	// параллельно с другими готовыми узлами.
	Parallel bool

	// StrictProperties — проверять свойства узлов по схеме перед запуском.
	StrictProperties bool

	// Clock — источник времени (default: time.Now).
	Clock func() time.Time

	// Metrics (опционально)
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Controller.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = nodes.DefaultRegistry(nodes.Options{Logger: logger})
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Controller{
		executor: executor.New(executor.Config{
			Registry: registry,
			Faults:   cfg.Faults,
			Metrics:  cfg.Metrics,
			Logger:   logger,
		}),
		registry:    registry,
		runs:        cfg.Runs,
		subscribers: cfg.Subscribers,
		parallel:    cfg.Parallel,
		strict:      cfg.StrictProperties,
		clock:       clock,
		activeRuns:  make(map[string]*activeRun),
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Registry возвращает реестр типов узлов контроллера.
func (c *Controller) Registry() *nodes.Registry {
	return c.registry
}

// StartOptions — параметры запуска run.
type StartOptions struct {
	// Trigger — источник запуска (default: manual).
	Trigger domain.TriggerType

	// TriggerData — данные запуска, доступны как {{ .Trigger }}.
	TriggerData map[string]any

	// Callbacks — callback'и только этого run (опционально).
	Callbacks *events.Callbacks

	// Subscribers — дополнительные подписчики только этого run.
	Subscribers []events.Subscriber
}

// Start выполняет flow и возвращает завершённый run.
//
// Ошибка валидации возвращается до создания run (run == nil).
// Падение узла не является ошибкой Start: оно отражается в статусе
// и логах run. Ошибка финального сохранения возвращается вместе с run,
// статус run при этом не меняется.
//
// Отмена ctx переводит run в cancelled. Settings.Timeout ограничивает
// время run; по его истечении run становится failed.
func (c *Controller) Start(ctx context.Context, flow *domain.Flow, opts StartOptions) (*domain.Run, error) {
	if flow == nil {
		return nil, ErrNilFlow
	}

	// 1. Валидация графа
	if err := engine.Validate(flow, c.registry); err != nil {
		return nil, err
	}
	if c.strict {
		if err := nodes.ValidateFlow(c.registry, flow); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProperties, err)
		}
	}

	// 2. Порядок выполнения
	graph, err := engine.NewGraph(flow)
	if err != nil {
		return nil, err
	}
	var order []string
	if !c.parallel {
		if order, err = graph.Resolve(); err != nil {
			return nil, err
		}
	}

	// 3. Создание run
	trigger := opts.Trigger
	if trigger == "" {
		trigger = domain.TriggerManual
	}
	run := &domain.Run{
		ID:          uuid.NewString(),
		FlowID:      flow.ID,
		FlowName:    flow.Name,
		Status:      domain.RunStatusPending,
		TriggerType: trigger,
		Logs:        make([]domain.LogEntry, 0, 2*len(flow.Nodes)+2),
	}

	subs := make([]events.Subscriber, 0, len(c.subscribers)+len(opts.Subscribers)+1)
	subs = append(subs, c.subscribers...)
	subs = append(subs, opts.Subscribers...)
	if opts.Callbacks != nil {
		subs = append(subs, *opts.Callbacks)
	}
	emitter := events.NewEmitter(run.ID, c.clock, subs...)

	now := emitter.Now()
	run.CreatedAt = now
	if err := run.MarkRunning(now); err != nil {
		return nil, err
	}

	save := c.runs != nil && flow.Settings.ShouldSaveToHistory()
	if save {
		if err := c.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	// 4. Контекст run: отмена и таймаут
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if timeout := flow.Settings.TimeoutDuration(); timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	state := NewRunState(run, flow, graph, opts.TriggerData)
	if err := c.addActiveRun(state, cancel); err != nil {
		return nil, err
	}
	defer c.removeActiveRun(run.ID)
	c.metrics.RunStarted()

	x := &execution{
		controller: c,
		state:      state,
		emitter:    emitter,
		logger:     telemetry.WithRunID(telemetry.WithFlowID(c.logger, flow.ID), run.ID),
	}

	x.logger.Info("run started",
		"flow_name", flow.Name,
		"trigger", trigger,
		"nodes", len(flow.Nodes),
		"parallel", c.parallel,
	)
	x.log(domain.SystemNodeID, domain.SystemNodeName, domain.LogInfo,
		"Starting flow execution: "+flow.Name,
		map[string]any{"flowId": flow.ID, "nodeCount": len(flow.Nodes)},
	)

	// 5. Выполнение узлов
	var failure *nodeFailure
	if c.parallel {
		failure = x.runReady(runCtx)
	} else {
		failure = x.runSequential(runCtx, order)
	}

	// 6. Финализация
	x.finish(ctx, runCtx, failure)

	var persistErr error
	if save {
		persistErr = c.persist(ctx, run)
		if persistErr != nil {
			x.logger.Error("failed to save run", "error", persistErr)
		}
	}

	c.metrics.RunFinished(string(run.Status))
	if err := emitter.RunCompleted(run); err != nil {
		x.logger.Warn("run-complete not emitted", "error", err)
	}

	x.logger.Info("run finished",
		"status", run.Status,
		"duration_ms", *run.DurationMs,
	)

	return run, persistErr
}

// Cancel отменяет выполняющийся run.
func (c *Controller) Cancel(runID string) error {
	c.mu.RLock()
	ar, ok := c.activeRuns[runID]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	ar.cancel()
	return nil
}

// addActiveRun добавляет run в активные.
func (c *Controller) addActiveRun(state *RunState, cancel context.CancelFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.activeRuns[state.Run.ID]; exists {
		return fmt.Errorf("run %s is already active", state.Run.ID)
	}
	c.activeRuns[state.Run.ID] = &activeRun{state: state, cancel: cancel}
	return nil
}

// removeActiveRun удаляет run из активных.
func (c *Controller) removeActiveRun(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activeRuns, runID)
}

// ActiveRunsCount возвращает количество активных run.
func (c *Controller) ActiveRunsCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.activeRuns)
}

// GetActiveRunStats возвращает статистику активного run.
func (c *Controller) GetActiveRunStats(runID string) (RunStats, bool) {
	c.mu.RLock()
	ar, ok := c.activeRuns[runID]
	c.mu.RUnlock()

	if !ok {
		return RunStats{}, false
	}
	return ar.state.Stats(), true
}
