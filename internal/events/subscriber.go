package events

import (
	"sync"
	"sync/atomic"

	"github.com/shaiso/flowforge/internal/domain"
)

// Subscriber — получатель событий.
//
// Handle вызывается синхронно из Emitter под его мьютексом,
// поэтому не должен блокироваться надолго и не должен эмитить сам.
type Subscriber interface {
	Handle(e Event)
}

// SubscriberFunc — адаптер функции к Subscriber.
type SubscriberFunc func(e Event)

// Handle реализует Subscriber.
func (f SubscriberFunc) Handle(e Event) { f(e) }

// Callbacks — подписчик в виде четырёх callback'ов.
// Nil callback'и пропускаются.
type Callbacks struct {
	OnNodeStart    func(nodeID string)
	OnNodeComplete func(nodeID string, success bool)
	OnLog          func(entry domain.LogEntry)
	OnComplete     func(run *domain.Run)
}

// Handle реализует Subscriber.
func (c Callbacks) Handle(e Event) {
	switch ev := e.(type) {
	case NodeStarted:
		if c.OnNodeStart != nil {
			c.OnNodeStart(ev.NodeID)
		}
	case NodeCompleted:
		if c.OnNodeComplete != nil {
			c.OnNodeComplete(ev.NodeID, ev.Success)
		}
	case LogAppended:
		if c.OnLog != nil {
			c.OnLog(ev.Entry)
		}
	case RunCompleted:
		if c.OnComplete != nil {
			c.OnComplete(ev.Snapshot)
		}
	}
}

// Broadcaster — fan-out событий в буферизованные каналы.
//
// Один Broadcaster обслуживает все run'ы процесса. Если буфер подписчика
// заполнен, событие для него отбрасывается и учитывается в Dropped:
// медленный читатель не задерживает выполнение.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Int64
}

// NewBroadcaster создаёт новый Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe возвращает канал событий и функцию отписки.
// Отписка закрывает канал.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Handle реализует Subscriber.
func (b *Broadcaster) Handle(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Count возвращает количество подписчиков.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped возвращает количество отброшенных событий.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}
