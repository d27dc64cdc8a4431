package domain

import (
	"errors"
	"time"
)

// ErrRunFinished — попытка изменить run в терминальном статусе.
var ErrRunFinished = errors.New("run is already finished")

// SystemNodeID — nodeId для сообщений уровня run.
const (
	SystemNodeID   = "system"
	SystemNodeName = "System"
)

// Run — экземпляр выполнения flow.
//
// Run создаётся контроллером в статусе running и изменяется только им.
// После перехода в терминальный статус run неизменяем: логи заморожены,
// повторный переход невозможен.
type Run struct {
	// ID — уникальный идентификатор run.
	ID string `json:"id"`

	// FlowID — ссылка на выполняемый flow.
	FlowID string `json:"flowId"`

	// FlowName — имя flow на момент запуска.
	FlowName string `json:"flowName"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// TriggerType — источник запуска.
	TriggerType TriggerType `json:"triggerType"`

	// Logs — упорядоченный журнал выполнения.
	Logs []LogEntry `json:"logs"`

	// Error — человекочитаемое описание ошибки для failed/cancelled.
	Error string `json:"error,omitempty"`

	// StartedAt — время перехода в running.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt — время завершения. Nil, пока run выполняется.
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// DurationMs — длительность выполнения. Nil, пока run выполняется.
	DurationMs *int64 `json:"durationMs,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"createdAt"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run из pending в running.
func (r *Run) MarkRunning(at time.Time) error {
	if r.Status != "" && r.Status != RunStatusPending {
		return ErrRunFinished
	}
	r.Status = RunStatusRunning
	r.StartedAt = at
	return nil
}

// MarkSucceeded переводит run в статус success.
func (r *Run) MarkSucceeded(at time.Time) error {
	return r.finish(RunStatusSuccess, at, "")
}

// MarkFailed переводит run в статус failed с ошибкой.
func (r *Run) MarkFailed(at time.Time, errMsg string) error {
	return r.finish(RunStatusFailed, at, errMsg)
}

// MarkCancelled переводит run в статус cancelled.
func (r *Run) MarkCancelled(at time.Time, errMsg string) error {
	return r.finish(RunStatusCancelled, at, errMsg)
}

func (r *Run) finish(status RunStatus, at time.Time, errMsg string) error {
	if r.Status.IsTerminal() {
		return ErrRunFinished
	}
	if at.Before(r.StartedAt) {
		at = r.StartedAt
	}
	ms := at.Sub(r.StartedAt).Milliseconds()

	r.Status = status
	r.FinishedAt = &at
	r.DurationMs = &ms
	r.Error = errMsg
	return nil
}

// AppendLog добавляет запись в журнал run.
func (r *Run) AppendLog(entry LogEntry) error {
	if r.Status.IsTerminal() {
		return ErrRunFinished
	}
	r.Logs = append(r.Logs, entry)
	return nil
}

// LogEntry — запись журнала run.
type LogEntry struct {
	// ID — уникальный идентификатор записи.
	ID string `json:"id"`

	// RunID — run, к которому относится запись.
	RunID string `json:"runId"`

	// NodeID — ID узла или SystemNodeID для сообщений уровня run.
	NodeID string `json:"nodeId"`

	// NodeName — отображаемое имя узла.
	NodeName string `json:"nodeName"`

	// Level — уровень записи.
	Level LogLevel `json:"level"`

	// Message — текст сообщения.
	Message string `json:"message"`

	// Data — произвольные структурированные данные.
	Data any `json:"data,omitempty"`

	// CreatedAt — время записи. Монотонно не убывает в рамках run.
	CreatedAt time.Time `json:"createdAt"`
}

