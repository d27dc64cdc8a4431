package api

import (
	"errors"
	"time"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
	"github.com/shaiso/flowforge/internal/store"
)

// Flow DTOs

// CreateFlowRequest — запрос на создание flow.
type CreateFlowRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Nodes       []domain.FlowNode   `json:"nodes,omitempty"`
	Edges       []domain.FlowEdge   `json:"edges,omitempty"`
	Settings    domain.FlowSettings `json:"settings"`
	Status      domain.FlowStatus   `json:"status,omitempty"`
}

// ToDomain конвертирует запрос в domain.Flow.
func (r CreateFlowRequest) ToDomain() *domain.Flow {
	return &domain.Flow{
		Name:        r.Name,
		Description: r.Description,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
		Settings:    r.Settings,
		Status:      r.Status,
	}
}

// UpdateFlowRequest — частичное обновление flow.
// Nodes и Edges заменяются целиком, если переданы.
type UpdateFlowRequest struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	Nodes       []domain.FlowNode    `json:"nodes,omitempty"`
	Edges       []domain.FlowEdge    `json:"edges,omitempty"`
	Settings    *domain.FlowSettings `json:"settings,omitempty"`
	Status      *domain.FlowStatus   `json:"status,omitempty"`
}

// ToPatch конвертирует запрос в store.FlowPatch.
func (r UpdateFlowRequest) ToPatch() store.FlowPatch {
	return store.FlowPatch{
		Name:        r.Name,
		Description: r.Description,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
		Settings:    r.Settings,
		Status:      r.Status,
	}
}

// ValidationResponse — результат проверки графа flow.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Error  string   `json:"error,omitempty"`
	NodeID string   `json:"nodeId,omitempty"`
	EdgeID string   `json:"edgeId,omitempty"`
	Handle string   `json:"handle,omitempty"`
	Cycle  []string `json:"cycle,omitempty"`
}

// ValidationFromError строит ValidationResponse из ошибки проверки.
func ValidationFromError(err error) ValidationResponse {
	if err == nil {
		return ValidationResponse{Valid: true}
	}
	resp := ValidationResponse{Error: err.Error()}
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		resp.NodeID = verr.NodeID
		resp.EdgeID = verr.EdgeID
		resp.Handle = verr.Handle
		resp.Cycle = verr.Cycle
	}
	return resp
}

// Run DTOs

// RunFlowRequest — запрос на запуск flow.
type RunFlowRequest struct {
	// Data — данные запуска, доступны узлам как {{ .Trigger }}.
	Data map[string]any `json:"data,omitempty"`

	// Wait — ждать завершения run и вернуть его целиком.
	Wait bool `json:"wait,omitempty"`
}

// RunStartedResponse — ответ на асинхронный запуск.
type RunStartedResponse struct {
	RunID  string           `json:"runId"`
	FlowID string           `json:"flowId"`
	Status domain.RunStatus `json:"status"`
}

// RunSummary — run без журнала, для списков.
type RunSummary struct {
	ID          string             `json:"id"`
	FlowID      string             `json:"flowId"`
	FlowName    string             `json:"flowName"`
	Status      domain.RunStatus   `json:"status"`
	TriggerType domain.TriggerType `json:"triggerType"`
	Error       string             `json:"error,omitempty"`
	LogCount    int                `json:"logCount"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  *time.Time         `json:"finishedAt,omitempty"`
	DurationMs  *int64             `json:"durationMs,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// RunSummaryFromDomain конвертирует domain.Run в RunSummary.
func RunSummaryFromDomain(r *domain.Run) RunSummary {
	return RunSummary{
		ID:          r.ID,
		FlowID:      r.FlowID,
		FlowName:    r.FlowName,
		Status:      r.Status,
		TriggerType: r.TriggerType,
		Error:       r.Error,
		LogCount:    len(r.Logs),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		DurationMs:  r.DurationMs,
		CreatedAt:   r.CreatedAt,
	}
}

// PublishEventRequest — запрос на запуск flow через очередь.
type PublishEventRequest struct {
	Data map[string]any `json:"data,omitempty"`
}
