package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/store"
)

// FlowSource — источник flows для запусков по событию.
type FlowSource interface {
	Get(ctx context.Context, id string) (*domain.Flow, error)
}

// StartFunc запускает flow с данными события и ждёт завершения run.
type StartFunc func(ctx context.Context, flow *domain.Flow, trigger domain.TriggerType, data map[string]any) (*domain.Run, error)

// RunRequestHandler возвращает Handler для очереди runs.requested.
//
// Отсутствующий или неактивный flow и невалидный граф — ErrPermanent.
// Сбой хранилища до создания run возвращается как обычная ошибка (повтор).
// Упавший run сообщение не отклоняет: результат записан в сам run.
func RunRequestHandler(flows FlowSource, start StartFunc, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, d *Delivery) error {
		req, err := ParsePayload[RunRequestedPayload](&d.Message)
		if err != nil {
			return Permanent(err)
		}
		if req.FlowID == "" {
			return Permanent(errors.New("flowId is required"))
		}

		flow, err := flows.Get(ctx, req.FlowID)
		if errors.Is(err, store.ErrNotFound) {
			return Permanent(fmt.Errorf("flow %s: %w", req.FlowID, err))
		}
		if err != nil {
			return fmt.Errorf("load flow %s: %w", req.FlowID, err)
		}
		if !flow.IsActive() {
			return Permanent(fmt.Errorf("flow %s is %s", flow.ID, flow.Status))
		}

		trigger := req.Trigger
		if trigger == "" {
			trigger = domain.TriggerEvent
		}

		run, err := start(ctx, flow, trigger, req.Data)
		if run == nil {
			if errors.Is(err, store.ErrStorage) {
				return err
			}
			return Permanent(err)
		}
		if err != nil {
			logger.Warn("event run finished but was not saved", "run_id", run.ID, "error", err)
		}

		logger.Info("event run finished",
			"flow_id", flow.ID,
			"run_id", run.ID,
			"status", run.Status,
			"source", req.Source,
			"trigger", trigger,
		)
		return nil
	}
}
