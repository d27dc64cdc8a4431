package domain

// FlowStatus — статус flow.
//
// Статус не мешает ручному запуску. Автоматические триггеры
// (webhook, schedule, event) запускают только ACTIVE flow.
type FlowStatus string

const (
	// FlowStatusDraft — черновик.
	FlowStatusDraft FlowStatus = "draft"

	// FlowStatusActive — flow включён.
	FlowStatusActive FlowStatus = "active"

	// FlowStatusPaused — flow приостановлен.
	FlowStatusPaused FlowStatus = "paused"

	// FlowStatusArchived — flow в архиве.
	FlowStatusArchived FlowStatus = "archived"
)

// IsValid возвращает true для известных статусов.
func (s FlowStatus) IsValid() bool {
	switch s {
	case FlowStatusDraft, FlowStatusActive, FlowStatusPaused, FlowStatusArchived:
		return true
	default:
		return false
	}
}

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	pending → running → success
//	                  ↘ failed
//	                  ↘ cancelled (контекст отменён или истёк таймаут)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "running"

	// RunStatusSuccess — все узлы выполнены успешно.
	RunStatusSuccess RunStatus = "success"

	// RunStatusFailed — узел завершился с ошибкой, run остановлен.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled — run отменён.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// TriggerType — источник запуска run.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerWebhook  TriggerType = "webhook"
	TriggerSchedule TriggerType = "schedule"
	TriggerEvent    TriggerType = "event"
)

// ParseTriggerType парсит строку в TriggerType. Неизвестные значения
// считаются ручным запуском.
func ParseTriggerType(s string) TriggerType {
	switch TriggerType(s) {
	case TriggerWebhook, TriggerSchedule, TriggerEvent:
		return TriggerType(s)
	default:
		return TriggerManual
	}
}

// LogLevel — уровень записи в логе run.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)
