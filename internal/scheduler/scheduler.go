package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/flowforge/internal/domain"
)

// Свойства узла schedule-trigger.
const (
	scheduleTriggerKind = "schedule-trigger"
	defaultSchedule     = "0 9 * * *"
	defaultTimezone     = "UTC"
)

// FlowLister — источник flows для планировщика.
type FlowLister interface {
	List(ctx context.Context) ([]*domain.Flow, error)
}

// StartFunc запускает flow по расписанию. Не должна ждать завершения run.
type StartFunc func(ctx context.Context, flow *domain.Flow, data map[string]any) error

// Scheduler — планировщик запусков flow по узлам schedule-trigger.
//
// Расписание не хранится отдельно: на каждом тике Scheduler перечитывает
// активные flows и сверяет их schedule-trigger узлы со своей таблицей
// next due. Новый или изменённый узел не срабатывает сразу, а получает
// ближайшее время после текущего.
type Scheduler struct {
	flows  FlowLister
	start  StartFunc
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[entryKey]*entry
}

type entryKey struct {
	flowID string
	nodeID string
}

type entry struct {
	expr     string
	timezone string
	nextDue  time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Flows  FlowLister
	Start  StartFunc
	Logger *slog.Logger
	Clock  func() time.Time // default: time.Now
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		flows:   cfg.Flows,
		start:   cfg.Start,
		logger:  logger,
		now:     now,
		entries: make(map[entryKey]*entry),
	}
}

// Run вызывает Tick каждые interval, пока ctx не отменён.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.Tick(ctx); err != nil {
		s.logger.Error("scheduler tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Загружает активные flows
// 2. Для каждого schedule-trigger обновляет next due
// 3. Запускает flows, у которых наступило время (не более одного run на flow)
// 4. Забывает узлы удалённых и неактивных flows
//
// Ошибки одного flow не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	flows, err := s.flows.List(ctx)
	if err != nil {
		return fmt.Errorf("list flows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[entryKey]struct{}, len(s.entries))
	var due, started int
	for _, flow := range flows {
		if !flow.IsActive() {
			continue
		}

		var fire *entry
		var fireNode string
		for _, node := range flow.NodesOfKind(scheduleTriggerKind) {
			key := entryKey{flowID: flow.ID, nodeID: node.ID}
			seen[key] = struct{}{}

			e, err := s.refresh(key, node, now)
			if err != nil {
				s.logger.Warn("invalid schedule, skipping",
					"flow_id", flow.ID,
					"node_id", node.ID,
					"error", err,
				)
				continue
			}
			if now.Before(e.nextDue) {
				continue
			}
			if fire == nil {
				fire, fireNode = e, node.ID
			}
			due++
			e.nextDue, _ = CalculateNextDue(e.expr, e.timezone, now)
		}

		if fire == nil {
			continue
		}
		data := map[string]any{
			"nodeId":      fireNode,
			"schedule":    fire.expr,
			"timezone":    fire.timezone,
			"triggeredAt": now.UTC().Format(time.RFC3339),
		}
		if err := s.start(ctx, flow, data); err != nil {
			s.logger.Error("failed to start scheduled run",
				"flow_id", flow.ID,
				"node_id", fireNode,
				"error", err,
			)
			continue
		}
		started++
		s.logger.Info("scheduled run started",
			"flow_id", flow.ID,
			"flow_name", flow.Name,
			"node_id", fireNode,
		)
	}

	for key := range s.entries {
		if _, ok := seen[key]; !ok {
			delete(s.entries, key)
		}
	}

	if due > 0 {
		s.logger.Info("scheduler tick completed",
			"due", due,
			"runs_started", started,
			"tracked", len(s.entries),
		)
	}
	return nil
}

// refresh возвращает запись для узла, пересчитывая next due,
// если узел новый или его расписание изменилось.
func (s *Scheduler) refresh(key entryKey, node *domain.FlowNode, now time.Time) (*entry, error) {
	expr := stringProp(node.Properties, "schedule", defaultSchedule)
	tz := stringProp(node.Properties, "timezone", defaultTimezone)

	if e, ok := s.entries[key]; ok && e.expr == expr && e.timezone == tz {
		return e, nil
	}

	next, err := CalculateNextDue(expr, tz, now)
	if err != nil {
		delete(s.entries, key)
		return nil, err
	}
	e := &entry{expr: expr, timezone: tz, nextDue: next}
	s.entries[key] = e
	return e, nil
}

// NextDue возвращает время следующего запуска узла flow.
func (s *Scheduler) NextDue(flowID, nodeID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryKey{flowID: flowID, nodeID: nodeID}]
	if !ok {
		return time.Time{}, false
	}
	return e.nextDue, true
}

func stringProp(props map[string]any, key, def string) string {
	if s, ok := props[key].(string); ok && s != "" {
		return s
	}
	return def
}
