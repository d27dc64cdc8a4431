package nodes

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/shaiso/flowforge/internal/domain"
)

// ErrInjectedFault — ошибка, внесённая FaultInjector.
var ErrInjectedFault = errors.New("simulated failure for demo purposes")

// FaultInjector решает, должна ли попытка выполнения узла упасть.
//
// Возвращает nil, если узел выполняется как обычно, иначе ошибку,
// которая станет ошибкой узла. attempt начинается с 1.
type FaultInjector interface {
	Inject(node *domain.FlowNode, attempt int) error
}

// FaultFunc — адаптер функции к FaultInjector.
type FaultFunc func(node *domain.FlowNode, attempt int) error

// Inject реализует FaultInjector.
func (f FaultFunc) Inject(node *domain.FlowNode, attempt int) error {
	return f(node, attempt)
}

// NeverFail — FaultInjector по умолчанию: никогда не вносит ошибок.
type NeverFail struct{}

// Inject реализует FaultInjector.
func (NeverFail) Inject(*domain.FlowNode, int) error { return nil }

// FailNodes — детерминированный FaultInjector: падают узлы из списка.
type FailNodes map[string]error

// FailNodeIDs создаёт FailNodes, где все узлы падают с ErrInjectedFault.
func FailNodeIDs(ids ...string) FailNodes {
	f := make(FailNodes, len(ids))
	for _, id := range ids {
		f[id] = ErrInjectedFault
	}
	return f
}

// Inject реализует FaultInjector.
func (f FailNodes) Inject(node *domain.FlowNode, _ int) error {
	if err, ok := f[node.ID]; ok {
		if err == nil {
			return ErrInjectedFault
		}
		return err
	}
	return nil
}

// Probability — FaultInjector, роняющий попытку с заданной вероятностью.
// Источник случайности задаётся seed, чтобы прогоны были воспроизводимы.
type Probability struct {
	mu   sync.Mutex
	rate float64
	rng  *rand.Rand
}

// NewProbability создаёт вероятностный FaultInjector.
// rate ограничивается отрезком [0, 1].
func NewProbability(rate float64, seed int64) *Probability {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &Probability{rate: rate, rng: rand.New(rand.NewSource(seed))}
}

// Inject реализует FaultInjector.
func (p *Probability) Inject(*domain.FlowNode, int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rate > 0 && p.rng.Float64() < p.rate {
		return ErrInjectedFault
	}
	return nil
}
