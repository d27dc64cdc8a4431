package orchestrator

import (
	"sync"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// RunState создаётся, когда Controller начинает run,
// и удаляется, когда run переходит в терминальный статус.
//
// Содержит:
//   - Run, который мутирует только Controller
//   - Граф flow
//   - Контекст шаблонов с выходами завершённых узлов
//   - Статус каждого узла
type RunState struct {
	// Run — выполняемый run.
	Run *domain.Run

	// Flow — выполняемый flow (только чтение).
	Flow *domain.Flow

	// Graph — граф узлов flow.
	Graph *engine.Graph

	// Context — контекст для рендеринга шаблонов.
	Context *engine.Context

	completed map[string]bool
	running   map[string]bool
	failed    map[string]bool

	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run, flow *domain.Flow, graph *engine.Graph, trigger map[string]any) *RunState {
	tmpl := engine.NewContext(trigger)
	tmpl.RunID = run.ID
	tmpl.FlowID = flow.ID

	return &RunState{
		Run:       run,
		Flow:      flow,
		Graph:     graph,
		Context:   tmpl,
		completed: make(map[string]bool),
		running:   make(map[string]bool),
		failed:    make(map[string]bool),
	}
}

// Prepare помечает узел выполняющимся и возвращает контекст шаблонов
// для него и выходы прямых предшественников в порядке входящих рёбер.
func (s *RunState) Prepare(nodeID string) (*engine.Context, []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[nodeID] = true

	preds := s.Graph.Predecessors(nodeID)
	inputs := make([]any, 0, len(preds))
	for _, id := range preds {
		if nc := s.Context.Nodes[id]; nc != nil {
			inputs = append(inputs, nc.Output)
		}
	}
	return s.Context.ForNode(preds), inputs
}

// ClaimReadyNodes возвращает узлы, все предшественники которых
// завершены успешно, и сразу помечает их выполняющимися: повторный
// вызов их уже не вернёт. Упавшие узлы не возвращаются.
func (s *RunState) ClaimReadyNodes() []*engine.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := make(map[string]bool, len(s.running)+len(s.failed))
	for id := range s.running {
		started[id] = true
	}
	for id := range s.failed {
		started[id] = true
	}

	ready := s.Graph.GetReadyNodes(s.completed, started)
	for _, n := range ready {
		s.running[n.ID] = true
	}
	return ready
}

// MarkNodeCompleted помечает узел успешно завершённым.
// Выход узла становится доступен следующим узлам.
func (s *RunState) MarkNodeCompleted(nodeID string, output any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, nodeID)
	s.completed[nodeID] = true
	s.Context.AddNodeResult(nodeID, output, string(domain.RunStatusSuccess))
}

// MarkNodeFailed помечает узел упавшим.
func (s *RunState) MarkNodeFailed(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, nodeID)
	s.failed[nodeID] = true
	s.Context.AddNodeResult(nodeID, nil, string(domain.RunStatusFailed))
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.Graph.Size()
	return RunStats{
		TotalNodes:     total,
		CompletedNodes: len(s.completed),
		RunningNodes:   len(s.running),
		FailedNodes:    len(s.failed),
		PendingNodes:   total - len(s.completed) - len(s.running) - len(s.failed),
	}
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalNodes     int `json:"totalNodes"`
	CompletedNodes int `json:"completedNodes"`
	RunningNodes   int `json:"runningNodes"`
	FailedNodes    int `json:"failedNodes"`
	PendingNodes   int `json:"pendingNodes"`
}
