package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/flowforge/internal/scheduler"
)

// ManualTrigger — точка входа для ручного запуска.
//
// Output: данные запуска (если passthrough и они есть) или initialData.
type ManualTrigger struct{ base }

// NewManualTrigger создаёт новый ManualTrigger.
func NewManualTrigger() *ManualTrigger {
	return &ManualTrigger{newBase(KindManualTrigger)}
}

// Execute передаёт данные запуска дальше.
func (k *ManualTrigger) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var output any
	if req.Template != nil && len(req.Template.Trigger) > 0 && GetBool(req.Properties, "passthrough", true) {
		output = req.Template.Trigger
	} else {
		output = parseJSONString(GetString(req.Properties, "initialData"))
	}

	return &Result{
		Output:  output,
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"triggeredAt": time.Now().UTC()},
	}, nil
}

// WebhookTrigger — точка входа для запуска по HTTP webhook.
//
// Output: тело входящего запроса (данные запуска).
type WebhookTrigger struct{ base }

// NewWebhookTrigger создаёт новый WebhookTrigger.
func NewWebhookTrigger() *WebhookTrigger {
	return &WebhookTrigger{newBase(KindWebhookTrigger)}
}

// Execute передаёт payload webhook дальше.
func (k *WebhookTrigger) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var payload map[string]any
	if req.Template != nil {
		payload = req.Template.Trigger
	}

	return &Result{
		Output:  payload,
		Message: k.CompleteMessage(req),
		Data: map[string]any{
			"path":   GetString(req.Properties, "path"),
			"method": GetString(req.Properties, "method"),
		},
	}, nil
}

// ScheduleTrigger — точка входа для запуска по расписанию.
//
// Output: {"triggeredAt", "schedule", "nextRun"}.
type ScheduleTrigger struct{ base }

// NewScheduleTrigger создаёт новый ScheduleTrigger.
func NewScheduleTrigger() *ScheduleTrigger {
	return &ScheduleTrigger{newBase(KindScheduleTrigger)}
}

// Execute проверяет cron-выражение и вычисляет следующий запуск.
func (k *ScheduleTrigger) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	expr := GetString(req.Properties, "schedule")
	tz := GetString(req.Properties, "timezone")

	now := time.Now()
	next, err := scheduler.CalculateNextDue(expr, tz, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	output := map[string]any{
		"triggeredAt": now.UTC(),
		"schedule":    expr,
		"nextRun":     next,
	}
	if req.Template != nil {
		for key, val := range req.Template.Trigger {
			if _, exists := output[key]; !exists {
				output[key] = val
			}
		}
	}

	return &Result{
		Output:  output,
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"schedule": expr, "nextRun": next},
	}, nil
}
