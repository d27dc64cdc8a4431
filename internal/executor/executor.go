package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
	"github.com/shaiso/flowforge/internal/nodes"
	"github.com/shaiso/flowforge/internal/telemetry"
)

// Executor выполняет отдельные узлы flow.
//
// Executor не знает о порядке выполнения и о run целиком:
// он находит тип узла в реестре, рендерит свойства, вызывает
// поведение типа с повторами по настройкам flow и измеряет время.
// Паника внутри поведения превращается в NodeError.
type Executor struct {
	registry *nodes.Registry
	faults   nodes.FaultInjector
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// Config — конфигурация Executor.
type Config struct {
	// Registry — реестр типов узлов (если nil — nodes.DefaultRegistry).
	Registry *nodes.Registry

	// Faults — стратегия внедрения сбоев (если nil — nodes.NeverFail).
	Faults nodes.FaultInjector

	// Metrics — метрики (опционально).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = nodes.DefaultRegistry(nodes.Options{Logger: logger})
	}

	faults := cfg.Faults
	if faults == nil {
		faults = nodes.NeverFail{}
	}

	return &Executor{
		registry: registry,
		faults:   faults,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// Registry возвращает реестр типов узлов.
func (e *Executor) Registry() *nodes.Registry {
	return e.registry
}

// RunContext — данные run, нужные для выполнения одного узла.
type RunContext struct {
	// RunID — ID run.
	RunID string

	// Settings — настройки flow (повторы).
	Settings domain.FlowSettings

	// Template — контекст шаблонов, уже собранный для этого узла (Context.ForNode).
	Template *engine.Context

	// Inputs — выходы прямых предшественников в порядке входящих рёбер.
	Inputs []any

	// Logger — логгер run (если nil — логгер Executor).
	Logger *slog.Logger

	// OnStart вызывается один раз перед первой попыткой со стартовым
	// сообщением узла. Опционально.
	OnStart func(message string)
}

// NodeResult — результат выполнения узла.
type NodeResult struct {
	NodeID  string
	Kind    string
	Success bool

	// Output — выход узла для следующих узлов.
	Output any

	// StartMessage, Message — сообщения для логов начала и завершения.
	StartMessage string
	Message      string

	// Data — структурированные данные для лога завершения.
	Data map[string]any

	// Err — причина неудачи (nil при успехе).
	Err error

	// Attempts — число сделанных попыток.
	Attempts int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration возвращает время выполнения узла, включая повторы.
func (r NodeResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// DurationMs возвращает время выполнения в миллисекундах.
func (r NodeResult) DurationMs() int64 {
	return r.Duration().Milliseconds()
}

// Error возвращает текст ошибки или "".
func (r NodeResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Execute выполняет узел.
//
// Ошибки не возвращаются отдельно: неудача отражается в NodeResult
// (Success=false, Err). Неизвестный тип даёт ErrUnknownNodeKind,
// ошибка поведения — *NodeError. Паника в любом методе Kind
// тоже становится *NodeError и не выходит за Execute.
func (e *Executor) Execute(ctx context.Context, node *domain.FlowNode, rc RunContext) (out NodeResult) {
	result := NodeResult{
		NodeID:    node.ID,
		Kind:      node.Kind,
		StartedAt: time.Now(),
	}

	logger := rc.Logger
	if logger == nil {
		logger = e.logger
	}
	logger = telemetry.WithNodeID(logger, node.ID, node.Kind)

	kind, err := e.registry.Get(node.Kind)
	if err != nil {
		result.StartMessage = "Executing " + node.DisplayName()
		notifyStart(rc, result.StartMessage)
		return e.finish(logger, result, fmt.Errorf("%w: %s", ErrUnknownNodeKind, node.Kind))
	}

	started := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.Error("node panicked", "panic", r, "stack", string(debug.Stack()))
		if !started {
			started = true
			result.StartMessage = "Executing " + node.DisplayName()
			notifyStart(rc, result.StartMessage)
		}
		result.Success = false
		out = e.finish(logger, result, &NodeError{
			NodeID:   node.ID,
			Kind:     node.Kind,
			Attempts: result.Attempts,
			Err:      fmt.Errorf("panic: %v", r),
		})
	}()

	tmpl := rc.Template
	if tmpl == nil {
		tmpl = engine.NewContext(nil)
	}

	props, renderErr := engine.RenderConfig(nodes.ApplyDefaults(kind.Definition(), node.Properties), tmpl)
	req := &nodes.Request{
		Node:       node,
		Properties: props,
		Template:   tmpl,
		Inputs:     rc.Inputs,
		Logger:     logger,
	}
	if renderErr != nil {
		req.Properties = node.Properties
	}

	result.StartMessage = kind.StartMessage(req)
	started = true
	notifyStart(rc, result.StartMessage)

	if renderErr != nil {
		return e.finish(logger, result, &NodeError{NodeID: node.ID, Kind: node.Kind, Err: renderErr})
	}

	maxAttempts := rc.Settings.MaxAttempts()
	var res *nodes.Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req.Attempt = attempt
		result.Attempts = attempt

		res, err = e.attempt(ctx, kind, req)
		if err == nil {
			break
		}
		if ctx.Err() != nil || attempt == maxAttempts {
			break
		}

		delay := rc.Settings.RetryDelay()
		logger.Warn("node attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err,
		)

		// Ждём с учётом context
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				err = fmt.Errorf("%w: %v", nodes.ErrNodeCancelled, ctx.Err())
			case <-timer.C:
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	if err != nil {
		return e.finish(logger, result, &NodeError{
			NodeID:   node.ID,
			Kind:     node.Kind,
			Attempts: result.Attempts,
			Err:      err,
		})
	}

	result.Success = true
	if res != nil {
		result.Output = res.Output
		result.Message = res.Message
		result.Data = res.Data
	}
	if result.Message == "" {
		result.Message = node.DisplayName() + " completed"
	}
	return e.finish(logger, result, nil)
}

// attempt выполняет одну попытку: сначала FaultInjector, затем поведение типа.
func (e *Executor) attempt(ctx context.Context, kind nodes.Kind, req *nodes.Request) (res *nodes.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			req.Logger.Error("node panicked", "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", nodes.ErrNodeCancelled, err)
	}
	if err := e.faults.Inject(req.Node, req.Attempt); err != nil {
		return nil, err
	}
	return kind.Execute(ctx, req)
}

// finish фиксирует время, метрики и итоговую ошибку.
func (e *Executor) finish(logger *slog.Logger, result NodeResult, err error) NodeResult {
	result.FinishedAt = time.Now()
	result.Err = err
	e.metrics.ObserveNode(result.Kind, result.Success, result.Duration())

	if err != nil {
		logger.Debug("node failed", "error", err, "attempts", result.Attempts, "duration_ms", result.DurationMs())
	} else {
		logger.Debug("node succeeded", "attempts", result.Attempts, "duration_ms", result.DurationMs())
	}
	return result
}

func notifyStart(rc RunContext, message string) {
	if rc.OnStart != nil {
		rc.OnStart(message)
	}
}
