package engine

import (
	"fmt"

	"github.com/shaiso/flowforge/internal/domain"
)

// DefinitionSource — источник определений типов узлов.
//
// Реализуется nodes.Registry.
type DefinitionSource interface {
	Definition(kind string) (*domain.NodeDefinition, bool)
}

// Validate проверяет граф flow перед запуском.
//
// Проверки выполняются по порядку, возвращается первая найденная ошибка:
//  1. Уникальность ID узлов и рёбер, существование концов рёбер
//  2. Handles рёбер объявлены типами узлов
//  3. Отсутствие циклов
//  4. Flow содержит хотя бы один узел
//
// Узлы неизвестного типа здесь не отклоняются: это ошибка выполнения узла.
// defs может быть nil, тогда проверка handles пропускается.
func Validate(flow *domain.Flow, defs DefinitionSource) error {
	if flow == nil {
		return NewValidationError("", "", "flow is nil", ErrEmptyFlow)
	}

	g, err := NewGraph(flow)
	if err != nil {
		return err
	}

	if defs != nil {
		if err := validateHandles(g, defs); err != nil {
			return err
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return &ValidationError{
			Cycle:   cycle,
			Message: "cycle detected",
			Err:     ErrCyclicGraph,
		}
	}

	if len(flow.Nodes) == 0 {
		return NewValidationError("", "", "flow has no nodes", ErrEmptyFlow)
	}

	return nil
}

// validateHandles проверяет handles всех рёбер в порядке объявления.
func validateHandles(g *Graph, defs DefinitionSource) error {
	// target node + handle → количество рёбер
	occupied := make(map[string]int)

	for _, n := range g.Ordered {
		def, ok := defs.Definition(n.Node.Kind)
		if !ok {
			continue
		}

		for _, e := range n.Outgoing {
			if _, ok := def.Output(e.SourceHandle); !ok {
				return &ValidationError{
					NodeID:  n.ID,
					EdgeID:  e.ID,
					Handle:  e.SourceHandle,
					Message: fmt.Sprintf("node %q (%s) has no output handle %q", n.ID, n.Node.Kind, e.SourceHandle),
					Err:     ErrUnknownHandle,
				}
			}
		}

		for _, e := range n.Incoming {
			h, ok := def.Input(e.TargetHandle)
			if !ok {
				return &ValidationError{
					NodeID:  n.ID,
					EdgeID:  e.ID,
					Handle:  e.TargetHandle,
					Message: fmt.Sprintf("node %q (%s) has no input handle %q", n.ID, n.Node.Kind, e.TargetHandle),
					Err:     ErrUnknownHandle,
				}
			}

			key := n.ID + "\x00" + h.ID
			occupied[key]++
			if occupied[key] > 1 && !h.Multiple {
				return &ValidationError{
					NodeID:  n.ID,
					EdgeID:  e.ID,
					Handle:  h.ID,
					Message: fmt.Sprintf("input handle %q of node %q accepts a single edge", h.ID, n.ID),
					Err:     ErrHandleOccupied,
				}
			}
		}
	}

	return nil
}
