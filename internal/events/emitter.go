package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowforge/internal/domain"
)

// Emitter — упорядоченный поток событий одного run.
//
// Все методы безопасны для конкурентного вызова: параллельные узлы
// эмитят через один мьютекс, поэтому подписчики видят полные события
// в едином порядке. Timestamps монотонно не убывают.
type Emitter struct {
	mu     sync.Mutex
	runID  string
	subs   []Subscriber
	clock  func() time.Time
	last   time.Time
	closed bool
}

// NewEmitter создаёт emitter для run.
// clock == nil означает time.Now.
func NewEmitter(runID string, clock func() time.Time, subs ...Subscriber) *Emitter {
	if clock == nil {
		clock = time.Now
	}
	filtered := make([]Subscriber, 0, len(subs))
	for _, s := range subs {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &Emitter{
		runID: runID,
		subs:  filtered,
		clock: clock,
	}
}

// Subscribe добавляет подписчика. События, эмитированные раньше,
// ему не доставляются.
func (e *Emitter) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, s)
}

// Now возвращает монотонный timestamp.
func (e *Emitter) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stamp()
}

// stamp вызывается под мьютексом.
func (e *Emitter) stamp() time.Time {
	t := e.clock()
	if t.Before(e.last) {
		t = e.last
	}
	e.last = t
	return t
}

// NodeStarted эмитит начало выполнения узла.
func (e *Emitter) NodeStarted(node *domain.FlowNode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEmitterClosed
	}

	e.deliver(NodeStarted{
		RunID:    e.runID,
		NodeID:   node.ID,
		NodeName: node.DisplayName(),
		NodeKind: node.Kind,
		At:       e.stamp(),
	})
	return nil
}

// NodeCompleted эмитит завершение узла.
func (e *Emitter) NodeCompleted(ev NodeCompleted) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEmitterClosed
	}

	ev.RunID = e.runID
	ev.At = e.stamp()
	e.deliver(ev)
	return nil
}

// Log проставляет ID, RunID и CreatedAt записи и эмитит её.
// Возвращает итоговую запись.
func (e *Emitter) Log(entry domain.LogEntry) (domain.LogEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return entry, ErrEmitterClosed
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.RunID = e.runID
	entry.CreatedAt = e.stamp()

	e.deliver(LogAppended{Entry: entry})
	return entry, nil
}

// RunCompleted эмитит завершение run и закрывает emitter.
func (e *Emitter) RunCompleted(run *domain.Run) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEmitterClosed
	}

	snapshot := *run
	snapshot.Logs = append([]domain.LogEntry(nil), run.Logs...)

	e.deliver(RunCompleted{Snapshot: &snapshot})
	e.closed = true
	return nil
}

func (e *Emitter) deliver(ev Event) {
	for _, s := range e.subs {
		s.Handle(ev)
	}
}
