package engine

import (
	"fmt"

	"github.com/shaiso/flowforge/internal/domain"
)

// Node — узел в графе flow.
type Node struct {
	// Node — определение узла из flow.
	Node *domain.FlowNode

	// ID — идентификатор узла.
	ID string

	// Index — позиция узла в flow.Nodes (порядок объявления).
	Index int

	// InDegree — количество различных предшественников.
	InDegree int

	// DependsOn — прямые предшественники в порядке объявления рёбер.
	DependsOn []*Node

	// Dependents — прямые последователи в порядке объявления рёбер.
	Dependents []*Node

	// Incoming — входящие рёбра.
	Incoming []*domain.FlowEdge

	// Outgoing — исходящие рёбра.
	Outgoing []*domain.FlowEdge
}

// IsTrigger возвращает true для узлов без входящих рёбер.
func (n *Node) IsTrigger() bool {
	return len(n.Incoming) == 0
}

// Graph — индекс графа flow для структурных запросов.
type Graph struct {
	// Nodes — все узлы графа (nodeID → Node).
	Nodes map[string]*Node

	// Ordered — узлы в порядке объявления.
	Ordered []*Node
}

// NewGraph строит индекс графа из flow.
//
// Возвращает ValidationError при дублирующихся ID или ребре,
// ссылающемся на несуществующий узел.
func NewGraph(flow *domain.Flow) (*Graph, error) {
	g := &Graph{
		Nodes:   make(map[string]*Node, len(flow.Nodes)),
		Ordered: make([]*Node, 0, len(flow.Nodes)),
	}

	for i := range flow.Nodes {
		fn := &flow.Nodes[i]
		if _, exists := g.Nodes[fn.ID]; exists {
			return nil, NewValidationError(fn.ID, "",
				fmt.Sprintf("duplicate node ID: %s", fn.ID), ErrDuplicateNodeID)
		}
		node := &Node{
			Node:       fn,
			ID:         fn.ID,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
		g.Nodes[fn.ID] = node
		g.Ordered = append(g.Ordered, node)
	}

	edgeIDs := make(map[string]bool, len(flow.Edges))
	for i := range flow.Edges {
		e := &flow.Edges[i]
		if edgeIDs[e.ID] {
			return nil, NewValidationError("", e.ID,
				fmt.Sprintf("duplicate edge ID: %s", e.ID), ErrDuplicateEdgeID)
		}
		edgeIDs[e.ID] = true

		from, ok := g.Nodes[e.Source]
		if !ok {
			return nil, NewValidationError("", e.ID,
				fmt.Sprintf("source node %q does not exist", e.Source), ErrDanglingEdge)
		}
		to, ok := g.Nodes[e.Target]
		if !ok {
			return nil, NewValidationError("", e.ID,
				fmt.Sprintf("target node %q does not exist", e.Target), ErrDanglingEdge)
		}

		from.Outgoing = append(from.Outgoing, e)
		to.Incoming = append(to.Incoming, e)
		g.addEdge(from, to)
	}

	return g, nil
}

// addEdge связывает узлы. Несколько рёбер между одной парой узлов
// (через разные handles) учитываются в InDegree один раз.
func (g *Graph) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// Node возвращает узел по ID.
func (g *Graph) Node(id string) *Node {
	return g.Nodes[id]
}

// Size возвращает количество узлов.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// Incoming возвращает входящие рёбра узла.
func (g *Graph) Incoming(id string) []*domain.FlowEdge {
	if n := g.Nodes[id]; n != nil {
		return n.Incoming
	}
	return nil
}

// Outgoing возвращает исходящие рёбра узла.
func (g *Graph) Outgoing(id string) []*domain.FlowEdge {
	if n := g.Nodes[id]; n != nil {
		return n.Outgoing
	}
	return nil
}

// Predecessors возвращает ID прямых предшественников узла.
func (g *Graph) Predecessors(id string) []string {
	n := g.Nodes[id]
	if n == nil {
		return nil
	}
	ids := make([]string, len(n.DependsOn))
	for i, dep := range n.DependsOn {
		ids[i] = dep.ID
	}
	return ids
}

// Successors возвращает ID прямых последователей узла.
func (g *Graph) Successors(id string) []string {
	n := g.Nodes[id]
	if n == nil {
		return nil
	}
	ids := make([]string, len(n.Dependents))
	for i, dep := range n.Dependents {
		ids[i] = dep.ID
	}
	return ids
}

// Triggers возвращает узлы без входящих рёбер в порядке объявления.
func (g *Graph) Triggers() []*Node {
	triggers := make([]*Node, 0)
	for _, n := range g.Ordered {
		if n.IsTrigger() {
			triggers = append(triggers, n)
		}
	}
	return triggers
}

// GetReadyNodes возвращает узлы, готовые к выполнению, в порядке объявления.
//
// Узел готов, если все его предшественники в completed,
// а сам он не в completed и не в running.
func (g *Graph) GetReadyNodes(completed, running map[string]bool) []*Node {
	ready := make([]*Node, 0)
	for _, n := range g.Ordered {
		if completed[n.ID] || running[n.ID] {
			continue
		}

		allDepsCompleted := true
		for _, dep := range n.DependsOn {
			if !completed[dep.ID] {
				allDepsCompleted = false
				break
			}
		}
		if allDepsCompleted {
			ready = append(ready, n)
		}
	}
	return ready
}

// findCycle возвращает узлы одного цикла или nil, если граф ацикличен.
// Обход начинается с узлов в порядке объявления.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.Nodes))
	stack := make([]string, 0)

	var cycle []string
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		color[n.ID] = grey
		stack = append(stack, n.ID)

		for _, next := range n.Dependents {
			switch color[next.ID] {
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next.ID {
						cycle = append(append([]string{}, stack[i:]...), next.ID)
						break
					}
				}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[n.ID] = black
		return false
	}

	for _, n := range g.Ordered {
		if color[n.ID] == white && visit(n) {
			return cycle
		}
	}
	return nil
}
