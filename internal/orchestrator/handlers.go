package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/events"
	"github.com/shaiso/flowforge/internal/executor"
	"github.com/shaiso/flowforge/internal/store"
	"github.com/shaiso/flowforge/internal/telemetry"
)

// execution — выполнение одного run.
//
// Записи лога добавляются в Run под тем же мьютексом, под которым
// эмитятся, поэтому Run.Logs совпадает с порядком событий.
type execution struct {
	controller *Controller
	state      *RunState
	emitter    *events.Emitter
	logger     *slog.Logger

	logMu sync.Mutex
}

// nodeFailure — первый упавший узел run.
type nodeFailure struct {
	node *domain.FlowNode
	err  error
}

// Error возвращает предложение для Run.Error.
func (f *nodeFailure) Error() string {
	return fmt.Sprintf("Node \"%s\" failed: %s", f.node.DisplayName(), f.err)
}

// log эмитит запись лога run и дублирует её в slog.
func (x *execution) log(nodeID, nodeName string, level domain.LogLevel, message string, data any) {
	x.logMu.Lock()
	defer x.logMu.Unlock()

	entry, err := x.emitter.Log(domain.LogEntry{
		NodeID:   nodeID,
		NodeName: nodeName,
		Level:    level,
		Message:  message,
		Data:     data,
	})
	if err != nil {
		x.logger.Warn("log not emitted", "message", message, "error", err)
		return
	}
	if err := x.state.Run.AppendLog(entry); err != nil {
		x.logger.Warn("log not appended", "message", message, "error", err)
	}
	telemetry.MirrorRunLog(context.Background(), x.logger, entry)
}

// runSequential выполняет узлы по одному в порядке order.
// Первый упавший узел останавливает run.
func (x *execution) runSequential(ctx context.Context, order []string) *nodeFailure {
	for _, id := range order {
		if ctx.Err() != nil {
			return nil
		}
		if f := x.runNode(ctx, id); f != nil {
			return f
		}
	}
	return nil
}

// runReady выполняет узлы параллельно по готовности: узел стартует,
// как только завершены все его предшественники, не дожидаясь
// остальных узлов того же уровня. Первый упавший узел отменяет
// выполняющиеся и новые узлы не запускаются.
func (x *execution) runReady(ctx context.Context) *nodeFailure {
	g, gctx := errgroup.WithContext(ctx)
	finished := make(chan struct{}, x.state.Graph.Size())

	inFlight := 0
	for {
		if gctx.Err() == nil {
			for _, n := range x.state.ClaimReadyNodes() {
				inFlight++
				g.Go(func() error {
					defer func() { finished <- struct{}{} }()
					if f := x.runNode(gctx, n.ID); f != nil {
						return f
					}
					return nil
				})
			}
		}
		if inFlight == 0 {
			break
		}
		<-finished
		inFlight--
	}

	if err := g.Wait(); err != nil {
		return err.(*nodeFailure)
	}
	return nil
}

// runNode выполняет один узел: node-start, стартовый лог, выполнение,
// затем лог завершения и node-complete (или лог ошибки и node-complete(false)).
func (x *execution) runNode(ctx context.Context, nodeID string) *nodeFailure {
	node := x.state.Graph.Node(nodeID).Node
	name := node.DisplayName()

	if err := x.emitter.NodeStarted(node); err != nil {
		x.logger.Warn("node-start not emitted", "node_id", nodeID, "error", err)
	}

	tmpl, inputs := x.state.Prepare(nodeID)
	res := x.controller.executor.Execute(ctx, node, executor.RunContext{
		RunID:    x.state.Run.ID,
		Settings: x.state.Flow.Settings,
		Template: tmpl,
		Inputs:   inputs,
		Logger:   x.logger,
		OnStart: func(message string) {
			x.log(node.ID, name, domain.LogInfo, message, nil)
		},
	})

	if res.Success {
		x.state.MarkNodeCompleted(nodeID, res.Output)

		data := make(map[string]any, len(res.Data)+2)
		for k, v := range res.Data {
			data[k] = v
		}
		data["durationMs"] = res.DurationMs()
		if res.Attempts > 1 {
			data["attempts"] = res.Attempts
		}
		x.log(node.ID, name, domain.LogInfo, res.Message, data)

		x.nodeCompleted(events.NodeCompleted{
			NodeID:     nodeID,
			Success:    true,
			DurationMs: res.DurationMs(),
			Attempts:   res.Attempts,
		})
		return nil
	}

	x.state.MarkNodeFailed(nodeID)
	x.log(node.ID, name, domain.LogError,
		fmt.Sprintf("Error executing %s: %s", name, res.Error()),
		map[string]any{
			"error":      res.Error(),
			"attempts":   res.Attempts,
			"durationMs": res.DurationMs(),
		},
	)
	x.nodeCompleted(events.NodeCompleted{
		NodeID:     nodeID,
		Success:    false,
		Error:      res.Error(),
		DurationMs: res.DurationMs(),
		Attempts:   res.Attempts,
	})

	return &nodeFailure{node: node, err: res.Err}
}

func (x *execution) nodeCompleted(ev events.NodeCompleted) {
	if err := x.emitter.NodeCompleted(ev); err != nil {
		x.logger.Warn("node-complete not emitted", "node_id", ev.NodeID, "error", err)
	}
}

// finish переводит run в терминальный статус и пишет финальный лог.
//
// parent — контекст вызывающего, runCtx — контекст run (с таймаутом).
// Отмена parent или Cancel даёт cancelled, истечение таймаута — failed.
func (x *execution) finish(parent, runCtx context.Context, failure *nodeFailure) {
	run := x.state.Run
	flow := x.state.Flow

	at := x.emitter.Now()
	durationMs := at.Sub(run.StartedAt).Milliseconds()

	status := domain.RunStatusSuccess
	var errMsg string
	switch {
	case runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil:
		status = domain.RunStatusFailed
		errMsg = fmt.Sprintf("Flow timed out after %dms", flow.Settings.Timeout)
		if failure != nil {
			errMsg = fmt.Sprintf("Node \"%s\" failed: flow timed out after %dms", failure.node.DisplayName(), flow.Settings.Timeout)
		}
	case runCtx.Err() != nil:
		status = domain.RunStatusCancelled
		errMsg = "Flow execution cancelled"
		if failure != nil {
			errMsg = fmt.Sprintf("Flow execution cancelled at node \"%s\"", failure.node.DisplayName())
		}
	case failure != nil:
		status = domain.RunStatusFailed
		errMsg = failure.Error()
	}

	// Хуки уведомлений
	if status == domain.RunStatusSuccess && flow.Settings.NotifyOnSuccess {
		x.log(domain.SystemNodeID, domain.SystemNodeName, domain.LogWarn,
			"Notification: flow "+flow.Name+" completed successfully",
			map[string]any{"event": "success"})
	}
	if status != domain.RunStatusSuccess && flow.Settings.NotifyOnFailure {
		x.log(domain.SystemNodeID, domain.SystemNodeName, domain.LogWarn,
			"Notification: flow "+flow.Name+" did not complete: "+errMsg,
			map[string]any{"event": string(status)})
	}

	data := map[string]any{"durationMs": durationMs, "status": string(status)}
	switch status {
	case domain.RunStatusSuccess:
		x.log(domain.SystemNodeID, domain.SystemNodeName, domain.LogInfo,
			fmt.Sprintf("Flow completed successfully in %dms", durationMs), data)
	case domain.RunStatusCancelled:
		x.log(domain.SystemNodeID, domain.SystemNodeName, domain.LogWarn,
			fmt.Sprintf("Flow execution cancelled after %dms", durationMs), data)
	default:
		x.log(domain.SystemNodeID, domain.SystemNodeName, domain.LogError,
			"Flow execution failed: "+errMsg, data)
	}

	var err error
	switch status {
	case domain.RunStatusSuccess:
		err = run.MarkSucceeded(at)
	case domain.RunStatusCancelled:
		err = run.MarkCancelled(at, errMsg)
	default:
		err = run.MarkFailed(at, errMsg)
	}
	if err != nil {
		x.logger.Error("failed to finish run", "status", status, "error", err)
	}
}

// persist сохраняет завершённый run. Если хранилище уже вытеснило
// запись (ограничение истории), run создаётся заново.
func (c *Controller) persist(ctx context.Context, run *domain.Run) error {
	ctx = context.WithoutCancel(ctx)

	err := c.runs.Update(ctx, run)
	if errors.Is(err, store.ErrNotFound) {
		err = c.runs.Create(ctx, run)
	}
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}
