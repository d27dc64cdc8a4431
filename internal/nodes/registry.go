package nodes

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/shaiso/flowforge/internal/domain"
)

// Registry — реестр типов узлов (NodeRegistry).
//
// Позволяет регистрировать и получать реализации Kind по ID типа.
// Потокобезопасен. Реализует engine.DefinitionSource.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
	}
}

// Options — зависимости встроенных типов узлов.
type Options struct {
	// HTTPClient — клиент для http-request и telegram-node.
	HTTPClient *http.Client

	// AI — клиент LLM для ai-completion. Nil — узел падает с ErrNotConfigured.
	AI Completer

	// TelegramAPI — базовый URL Telegram Bot API.
	TelegramAPI string

	// Logger — логгер для console-log и code-node.
	Logger *slog.Logger
}

// DefaultRegistry создаёт реестр со всеми встроенными типами узлов.
func DefaultRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := NewRegistry()

	r.Register(NewManualTrigger())
	r.Register(NewWebhookTrigger())
	r.Register(NewScheduleTrigger())
	r.Register(NewHTTPRequest(opts.HTTPClient))
	r.Register(NewAICompletion(opts.AI))
	r.Register(NewCodeNode(opts.Logger))
	r.Register(NewJSONTransform())
	r.Register(NewIfNode())
	r.Register(NewSwitchNode())
	r.Register(NewMergeNode())
	r.Register(NewConsoleLog(opts.Logger))
	r.Register(NewEmailNode())
	r.Register(NewTelegramNode(opts.HTTPClient, opts.TelegramAPI))

	return r
}

// Register регистрирует тип узла.
// Если тип с таким ID уже существует, он будет перезаписан.
func (r *Registry) Register(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind.Definition().ID] = kind
}

// Get возвращает тип узла по ID.
// Возвращает ErrKindNotFound, если тип не найден.
func (r *Registry) Get(kind string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, exists := r.kinds[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrKindNotFound, kind)
	}

	return k, nil
}

// Definition возвращает определение зарегистрированного типа.
func (r *Registry) Definition(kind string) (*domain.NodeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, exists := r.kinds[kind]
	if !exists {
		return nil, false
	}
	return k.Definition(), true
}

// Definitions возвращает определения всех типов, отсортированные по ID.
func (r *Registry) Definitions() []*domain.NodeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*domain.NodeDefinition, 0, len(r.kinds))
	for _, k := range r.kinds {
		defs = append(defs, k.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.kinds[kind]
	return exists
}

// Types возвращает список всех зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.kinds))
	for t := range r.kinds {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count возвращает количество зарегистрированных типов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}

// Unregister удаляет тип из реестра.
func (r *Registry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.kinds, kind)
}
