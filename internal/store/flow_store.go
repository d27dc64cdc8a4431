package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/flowforge/internal/domain"
)

// FlowPatch — частичное обновление flow. Nil-поля не меняются.
type FlowPatch struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	Nodes       []domain.FlowNode    `json:"nodes,omitempty"`
	Edges       []domain.FlowEdge    `json:"edges,omitempty"`
	Settings    *domain.FlowSettings `json:"settings,omitempty"`
	Status      *domain.FlowStatus   `json:"status,omitempty"`
}

// FlowStore — хранилище flows поверх Store.
type FlowStore struct {
	s    Store
	runs *RunStore
	now  func() time.Time
}

// NewFlowStore создаёт FlowStore. runs может быть nil; тогда
// удаление flow не затрагивает его runs.
func NewFlowStore(s Store, runs *RunStore) *FlowStore {
	return &FlowStore{s: s, runs: runs, now: time.Now}
}

// Get возвращает flow по ID.
func (fs *FlowStore) Get(ctx context.Context, id string) (*domain.Flow, error) {
	b, err := fs.s.Get(ctx, BucketFlows, id)
	if err != nil {
		return nil, err
	}
	return decodeFlow(b)
}

// List возвращает все flows, новые первыми.
func (fs *FlowStore) List(ctx context.Context) ([]*domain.Flow, error) {
	all, err := fs.s.List(ctx, BucketFlows)
	if err != nil {
		return nil, err
	}

	flows := make([]*domain.Flow, 0, len(all))
	for _, b := range all {
		f, err := decodeFlow(b)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].ID < flows[j].ID
		}
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})
	return flows, nil
}

// Create сохраняет новый flow. Пустые ID, Status и временные метки
// заполняются; существующий ID — ErrAlreadyExists.
func (fs *FlowStore) Create(ctx context.Context, flow *domain.Flow) error {
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	} else if _, err := fs.s.Get(ctx, BucketFlows, flow.ID); err == nil {
		return fmt.Errorf("flow %s: %w", flow.ID, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	now := fs.now().UTC()
	if flow.Status == "" {
		flow.Status = domain.FlowStatusDraft
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}
	flow.UpdatedAt = now
	if flow.Nodes == nil {
		flow.Nodes = []domain.FlowNode{}
	}
	if flow.Edges == nil {
		flow.Edges = []domain.FlowEdge{}
	}
	return fs.put(ctx, flow)
}

// Update применяет patch и обновляет UpdatedAt.
func (fs *FlowStore) Update(ctx context.Context, id string, patch FlowPatch) (*domain.Flow, error) {
	flow, err := fs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		flow.Name = *patch.Name
	}
	if patch.Description != nil {
		flow.Description = *patch.Description
	}
	if patch.Nodes != nil {
		flow.Nodes = patch.Nodes
	}
	if patch.Edges != nil {
		flow.Edges = patch.Edges
	}
	if patch.Settings != nil {
		flow.Settings = *patch.Settings
	}
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return nil, fmt.Errorf("invalid flow status %q", *patch.Status)
		}
		flow.Status = *patch.Status
	}
	flow.UpdatedAt = fs.now().UTC()

	if err := fs.put(ctx, flow); err != nil {
		return nil, err
	}
	return flow, nil
}

// Delete удаляет flow вместе с его runs.
func (fs *FlowStore) Delete(ctx context.Context, id string) error {
	if err := fs.s.Delete(ctx, BucketFlows, id); err != nil {
		return err
	}
	if fs.runs != nil {
		if _, err := fs.runs.DeleteByFlow(ctx, id); err != nil {
			return fmt.Errorf("delete runs of flow %s: %w", id, err)
		}
	}
	return nil
}

// Duplicate создаёт копию flow с именем "<name> (Copy)" в статусе draft.
func (fs *FlowStore) Duplicate(ctx context.Context, id string) (*domain.Flow, error) {
	src, err := fs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cp := *src
	cp.ID = ""
	cp.Name = src.Name + " (Copy)"
	cp.Status = domain.FlowStatusDraft
	cp.CreatedAt = time.Time{}
	cp.Nodes = append([]domain.FlowNode(nil), src.Nodes...)
	cp.Edges = append([]domain.FlowEdge(nil), src.Edges...)

	if err := fs.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (fs *FlowStore) put(ctx context.Context, flow *domain.Flow) error {
	b, err := json.Marshal(flow)
	if err != nil {
		return storageErr("marshal flow", err)
	}
	return fs.s.Set(ctx, BucketFlows, flow.ID, b)
}

func decodeFlow(b []byte) (*domain.Flow, error) {
	var f domain.Flow
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, storageErr("unmarshal flow", err)
	}
	return &f, nil
}
