package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/events"
	"github.com/shaiso/flowforge/internal/mq"
	"github.com/shaiso/flowforge/internal/orchestrator"
)

// defaultRunsLimit — размер страницы списка run по умолчанию.
const defaultRunsLimit = 50

// RunFlow запускает flow вручную.
// POST /api/v1/flows/{id}/run
//
// По умолчанию run выполняется в фоне, ответ 202 содержит runId.
// С wait=true (в теле или query) ответ содержит завершённый run.
func (h *Handler) RunFlow(w http.ResponseWriter, r *http.Request) {
	var req RunFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}
	if wait, err := strconv.ParseBool(r.URL.Query().Get("wait")); err == nil {
		req.Wait = wait
	}

	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	opts := orchestrator.StartOptions{
		Trigger:     domain.TriggerManual,
		TriggerData: req.Data,
	}

	if req.Wait {
		run, err := h.controller.Start(r.Context(), flow, opts)
		if run == nil {
			HandleStoreError(w, h.logger, err, "")
			return
		}
		if err != nil {
			h.logger.Warn("run finished but was not saved", "run_id", run.ID, "error", err)
		}
		Success(w, run)
		return
	}

	runID, err := h.startAsync(r.Context(), flow, opts)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	Accepted(w, RunStartedResponse{
		RunID:  runID,
		FlowID: flow.ID,
		Status: domain.RunStatusRunning,
	})
}

// startAsync запускает run в фоне на h.baseCtx и ждёт, пока станет
// известен его ID. Ошибка запуска (валидация, сбой хранилища)
// возвращается до создания run.
func (h *Handler) startAsync(ctx context.Context, flow *domain.Flow, opts orchestrator.StartOptions) (string, error) {
	idCh := make(chan string, 1)
	errCh := make(chan error, 1)

	var once sync.Once
	callbacks := &events.Callbacks{
		OnLog: func(entry domain.LogEntry) {
			once.Do(func() { idCh <- entry.RunID })
		},
	}
	if opts.Callbacks != nil {
		prev := *opts.Callbacks
		opts.Subscribers = append(opts.Subscribers, prev)
	}
	opts.Callbacks = callbacks

	go func() {
		run, err := h.controller.Start(h.baseCtx, flow, opts)
		switch {
		case run == nil:
			errCh <- err
		case err != nil:
			h.logger.Warn("run finished but was not saved", "run_id", run.ID, "error", err)
		}
	}()

	select {
	case id := <-idCh:
		return id, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?flow_id=...&status=...&limit=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultRunsLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	var (
		runs []*domain.Run
		err  error
	)
	if flowID := q.Get("flow_id"); flowID != "" {
		runs, err = h.runs.ListByFlow(r.Context(), flowID)
	} else {
		runs, err = h.runs.List(r.Context())
	}
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	status := domain.RunStatus(q.Get("status"))
	result := make([]RunSummary, 0, min(len(runs), limit))
	for _, run := range runs {
		if status != "" && run.Status != status {
			continue
		}
		if len(result) == limit {
			break
		}
		result = append(result, RunSummaryFromDomain(run))
	}

	List(w, result, len(result))
}

// ListFlowRuns возвращает историю run одного flow.
// GET /api/v1/flows/{id}/runs
func (h *Handler) ListFlowRuns(w http.ResponseWriter, r *http.Request) {
	flowID := r.PathValue("id")
	if _, err := h.flows.Get(r.Context(), flowID); HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	runs, err := h.runs.ListByFlow(r.Context(), flowID)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]RunSummary, len(runs))
	for i, run := range runs {
		result[i] = RunSummaryFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run с журналом.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, run)
}

// GetRunProgress возвращает прогресс выполняющегося run.
// GET /api/v1/runs/{id}/progress
func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.controller.GetActiveRunStats(r.PathValue("id"))
	if !ok {
		NotFound(w, "run is not active")
		return
	}

	Success(w, stats)
}

// DeleteRun удаляет run из истории.
// DELETE /api/v1/runs/{id}
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	err := h.runs.Delete(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "run not found") {
		return
	}

	NoContent(w)
}

// CancelRun отменяет выполняющийся run.
// POST /api/v1/runs/{id}/cancel
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if HandleStoreError(w, h.logger, h.controller.Cancel(id), "") {
		return
	}

	Accepted(w, map[string]string{"runId": id})
}

// PublishFlowEvent ставит запуск flow в очередь RabbitMQ.
// POST /api/v1/flows/{id}/events
func (h *Handler) PublishFlowEvent(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		Unavailable(w, "event queue is not configured")
		return
	}

	var req PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}
	if !flow.IsActive() {
		Conflict(w, "flow is not active")
		return
	}

	err = h.publisher.PublishRunRequested(r.Context(), mq.RunRequestedPayload{
		FlowID: flow.ID,
		Data:   req.Data,
		Source: "api",
	})
	if err != nil {
		h.logger.Error("publish run request failed", "flow_id", flow.ID, "error", err)
		Unavailable(w, "failed to enqueue run")
		return
	}

	Accepted(w, map[string]string{"flowId": flow.ID})
}
