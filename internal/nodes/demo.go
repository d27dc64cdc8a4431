package nodes

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shaiso/flowforge/internal/domain"
)

// Значения по умолчанию для симуляции.
const (
	DefaultMinDelay = 300 * time.Millisecond
	DefaultMaxDelay = 1500 * time.Millisecond
)

// SimulationConfig — настройки демо-реестра.
type SimulationConfig struct {
	// MinDelay, MaxDelay — границы случайной задержки узла.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Seed — seed генератора задержек и исходов if-node.
	// 0 означает текущее время.
	Seed int64
}

// delaySource — потокобезопасный генератор случайных задержек.
type delaySource struct {
	mu  sync.Mutex
	rng *rand.Rand
	min time.Duration
	max time.Duration
}

func (d *delaySource) next() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.max <= d.min {
		return d.min
	}
	return d.min + time.Duration(d.rng.Int63n(int64(d.max-d.min)+1))
}

func (d *delaySource) coin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(2) == 1
}

// Simulated — тип узла, имитирующий работу задержкой.
//
// Используется демо-реестром для всех типов. Сообщения и handles
// совпадают с настоящим типом, поэтому flow валидируется одинаково.
type Simulated struct {
	base
	delays *delaySource
}

// NewSimulated создаёт симуляцию для произвольного определения.
// Для типов вне каталога используются сообщения "Executing {label}" / "{label} completed".
func NewSimulated(def *domain.NodeDefinition, cfg SimulationConfig) *Simulated {
	return newSimulated(def, newDelaySource(cfg))
}

func newDelaySource(cfg SimulationConfig) *delaySource {
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &delaySource{
		rng: rand.New(rand.NewSource(seed)),
		min: cfg.MinDelay,
		max: cfg.MaxDelay,
	}
}

func newSimulated(def *domain.NodeDefinition, delays *delaySource) *Simulated {
	msgs, ok := kindMessages[def.ID]
	if !ok {
		msgs = [2]string{"Executing {label}", "{label} completed"}
	}
	return &Simulated{
		base:   base{def: def, start: msgs[0], complete: msgs[1]},
		delays: delays,
	}
}

// Execute ждёт случайную задержку. Отмена ctx прерывает ожидание.
func (k *Simulated) Execute(ctx context.Context, req *Request) (*Result, error) {
	delay := k.delays.next()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	message := k.CompleteMessage(req)
	output := map[string]any{
		"simulated": true,
		"delayMs":   delay.Milliseconds(),
		"input":     req.Input(),
	}
	if k.def.ID == KindIf {
		branch := "FALSE"
		if k.delays.coin() {
			branch = "TRUE"
		}
		message = "Condition evaluated: " + branch
		output["branch"] = branch
	}

	return &Result{
		Output:  output,
		Message: message,
		Data:    map[string]any{"delayMs": delay.Milliseconds(), "simulated": true},
	}, nil
}

// DemoRegistry создаёт реестр, в котором все встроенные типы симулируются.
func DemoRegistry(cfg SimulationConfig) *Registry {
	if cfg.MinDelay == 0 && cfg.MaxDelay == 0 {
		cfg.MinDelay = DefaultMinDelay
		cfg.MaxDelay = DefaultMaxDelay
	}
	delays := newDelaySource(cfg)

	r := NewRegistry()
	for _, kind := range CatalogKinds() {
		def, _ := Definition(kind)
		r.Register(newSimulated(def, delays))
	}
	return r
}
