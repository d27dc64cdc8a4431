package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/flowforge/internal/domain"
)

// DefaultRunHistoryLimit — сколько runs хранится по умолчанию.
const DefaultRunHistoryLimit = 50

// RunStore — хранилище runs с ограниченной историей.
//
// При превышении лимита самые старые runs (по CreatedAt) удаляются.
// RunStore реализует orchestrator.RunStore.
type RunStore struct {
	s     Store
	limit int

	// mu сериализует Create и Update: вытеснение видит согласованный
	// список, а Update не возвращает уже вытесненный run.
	mu sync.Mutex
}

// NewRunStore создаёт RunStore. limit <= 0 означает DefaultRunHistoryLimit.
func NewRunStore(s Store, limit int) *RunStore {
	if limit <= 0 {
		limit = DefaultRunHistoryLimit
	}
	return &RunStore{s: s, limit: limit}
}

// Limit возвращает размер истории.
func (rs *RunStore) Limit() int {
	return rs.limit
}

// Create сохраняет новый run и вытесняет самые старые сверх лимита.
func (rs *RunStore) Create(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, err := rs.s.Get(ctx, BucketRuns, run.ID); err == nil {
		return fmt.Errorf("run %s: %w", run.ID, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := rs.put(ctx, run); err != nil {
		return err
	}
	return rs.evict(ctx)
}

// Update перезаписывает существующий run.
// Отсутствующий (например, вытесненный) run — ErrNotFound.
func (rs *RunStore) Update(ctx context.Context, run *domain.Run) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, err := rs.s.Get(ctx, BucketRuns, run.ID); err != nil {
		return err
	}
	return rs.put(ctx, run)
}

// Get возвращает run по ID.
func (rs *RunStore) Get(ctx context.Context, id string) (*domain.Run, error) {
	b, err := rs.s.Get(ctx, BucketRuns, id)
	if err != nil {
		return nil, err
	}
	return decodeRun(b)
}

// List возвращает все runs, новые первыми.
func (rs *RunStore) List(ctx context.Context) ([]*domain.Run, error) {
	all, err := rs.s.List(ctx, BucketRuns)
	if err != nil {
		return nil, err
	}

	runs := make([]*domain.Run, 0, len(all))
	for _, b := range all {
		r, err := decodeRun(b)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	sortNewestFirst(runs)
	return runs, nil
}

// ListByFlow возвращает runs одного flow, новые первыми.
func (rs *RunStore) ListByFlow(ctx context.Context, flowID string) ([]*domain.Run, error) {
	runs, err := rs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := runs[:0]
	for _, r := range runs {
		if r.FlowID == flowID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete удаляет run.
func (rs *RunStore) Delete(ctx context.Context, id string) error {
	return rs.s.Delete(ctx, BucketRuns, id)
}

// DeleteByFlow удаляет все runs flow и возвращает их количество.
func (rs *RunStore) DeleteByFlow(ctx context.Context, flowID string) (int, error) {
	runs, err := rs.ListByFlow(ctx, flowID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range runs {
		if err := rs.s.Delete(ctx, BucketRuns, r.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

func (rs *RunStore) evict(ctx context.Context) error {
	runs, err := rs.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs[min(len(runs), rs.limit):] {
		if err := rs.s.Delete(ctx, BucketRuns, r.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("evict run %s: %w", r.ID, err)
		}
	}
	return nil
}

func (rs *RunStore) put(ctx context.Context, run *domain.Run) error {
	b, err := json.Marshal(run)
	if err != nil {
		return storageErr("marshal run", err)
	}
	return rs.s.Set(ctx, BucketRuns, run.ID, b)
}

func decodeRun(b []byte) (*domain.Run, error) {
	var r domain.Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, storageErr("unmarshal run", err)
	}
	return &r, nil
}

func sortNewestFirst(runs []*domain.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
