package engine

import (
	"fmt"

	"github.com/shaiso/flowforge/internal/domain"
)

// Resolve вычисляет линейный порядок выполнения узлов.
//
// Алгоритм: триггеры (узлы без входящих рёбер) обходятся в порядке
// объявления; из каждого выполняется обход в глубину по исходящим рёбрам
// в порядке их объявления, и узел вставляется в начало результата после
// всех своих потомков. Узлы, недостижимые из триггеров, обходятся так же
// и добавляются в конец.
//
// Для каждого ребра u → v узел u в результате стоит раньше v.
// Обратное ребро при обходе означает цикл — возвращается ErrCyclicGraph.
func Resolve(flow *domain.Flow) ([]string, error) {
	g, err := NewGraph(flow)
	if err != nil {
		return nil, err
	}
	return g.Resolve()
}

// Resolve вычисляет порядок выполнения для уже построенного графа.
func (g *Graph) Resolve() ([]string, error) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(g.Nodes))

	var visit func(n *Node, out *[]string) error
	visit = func(n *Node, out *[]string) error {
		state[n.ID] = inProgress
		for _, e := range n.Outgoing {
			next := g.Nodes[e.Target]
			switch state[next.ID] {
			case inProgress:
				return &ValidationError{
					NodeID:  next.ID,
					EdgeID:  e.ID,
					Cycle:   g.findCycle(),
					Message: "cycle detected",
					Err:     ErrCyclicGraph,
				}
			case unvisited:
				if err := visit(next, out); err != nil {
					return err
				}
			}
		}
		state[n.ID] = done
		*out = append(*out, n.ID)
		return nil
	}

	// Post-order собирается в конец, затем разворачивается:
	// это эквивалентно вставке в начало.
	postorder := make([]string, 0, len(g.Nodes))
	for _, t := range g.Triggers() {
		if err := visit(t, &postorder); err != nil {
			return nil, err
		}
	}
	order := reversed(postorder)

	orphans := make([]string, 0)
	for _, n := range g.Ordered {
		if state[n.ID] != unvisited {
			continue
		}
		tail := make([]string, 0)
		if err := visit(n, &tail); err != nil {
			return nil, err
		}
		orphans = append(orphans, reversed(tail)...)
	}

	return append(order, orphans...), nil
}

// Batches разбивает граф на уровни алгоритмом Кана.
//
// Каждый батч — узлы, все предшественники которых находятся в предыдущих
// батчах. Внутри батча узлы упорядочены по объявлению. Узлы одного батча
// независимы и могут выполняться параллельно.
func Batches(flow *domain.Flow) ([][]string, error) {
	g, err := NewGraph(flow)
	if err != nil {
		return nil, err
	}
	return g.Batches()
}

// Batches вычисляет уровни для уже построенного графа.
func (g *Graph) Batches() ([][]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	for id, n := range g.Nodes {
		inDegree[id] = n.InDegree
	}

	current := make([]*Node, 0)
	for _, n := range g.Ordered {
		if n.InDegree == 0 {
			current = append(current, n)
		}
	}

	batches := make([][]string, 0)
	processed := 0
	for len(current) > 0 {
		ids := make([]string, len(current))
		for i, n := range current {
			ids[i] = n.ID
		}
		batches = append(batches, ids)
		processed += len(current)

		ready := make(map[string]bool)
		for _, n := range current {
			for _, dep := range n.Dependents {
				inDegree[dep.ID]--
				if inDegree[dep.ID] == 0 {
					ready[dep.ID] = true
				}
			}
		}

		next := make([]*Node, 0, len(ready))
		for _, n := range g.Ordered {
			if ready[n.ID] {
				next = append(next, n)
			}
		}
		current = next
	}

	if processed != len(g.Nodes) {
		cycle := g.findCycle()
		return nil, &ValidationError{
			Cycle:   cycle,
			Message: fmt.Sprintf("cycle detected, %d of %d nodes unreachable", len(g.Nodes)-processed, len(g.Nodes)),
			Err:     ErrCyclicGraph,
		}
	}

	return batches, nil
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
