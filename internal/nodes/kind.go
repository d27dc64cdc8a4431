package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
)

// Ошибки узлов.
var (
	// ErrKindNotFound — тип узла не найден в реестре.
	ErrKindNotFound = errors.New("node kind not found")

	// ErrInvalidConfig — невалидные свойства узла.
	ErrInvalidConfig = errors.New("invalid node properties")

	// ErrNodeCancelled — выполнение узла отменено.
	ErrNodeCancelled = errors.New("node execution cancelled")

	// ErrNotConfigured — для типа узла не настроена внешняя интеграция.
	ErrNotConfigured = errors.New("node kind is not configured")
)

// Kind — поведение типа узла.
//
// Каждый тип (http-request, if-node, ...) реализует этот интерфейс.
type Kind interface {
	// Definition возвращает описание типа: handles и схему свойств.
	Definition() *domain.NodeDefinition

	// StartMessage возвращает сообщение для лога перед выполнением.
	StartMessage(req *Request) string

	// Execute выполняет узел.
	// Реализация должна проверять ctx.Done() для отмены.
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Request — входные данные для выполнения узла.
type Request struct {
	// Node — выполняемый узел.
	Node *domain.FlowNode

	// Properties — свойства узла с применёнными значениями по умолчанию
	// и отрендеренными шаблонами.
	Properties map[string]any

	// Template — контекст шаблонов с выходами предыдущих узлов.
	Template *engine.Context

	// Inputs — выходы прямых предшественников в порядке рёбер.
	Inputs []any

	// Attempt — номер попытки, начиная с 1.
	Attempt int

	// Logger — логгер с атрибутами run и узла.
	Logger *slog.Logger
}

// Input возвращает данные от предшественников узла.
func (r *Request) Input() any {
	if r.Template == nil {
		return nil
	}
	return r.Template.Input
}

// Result — результат выполнения узла.
type Result struct {
	// Output — выходные данные, доступны следующим узлам
	// через {{ .Nodes.nodeID.Output }}.
	Output any

	// Message — сообщение для лога о завершении.
	Message string

	// Data — структурированные данные для лога о завершении.
	Data map[string]any
}

// NewResult создаёт Result с выходом и сообщением.
func NewResult(output any, message string) *Result {
	return &Result{Output: output, Message: message}
}

// base — общая часть встроенных типов: определение и шаблоны сообщений.
type base struct {
	def      *domain.NodeDefinition
	start    string
	complete string
}

func newBase(kind string) base {
	def, ok := Definition(kind)
	if !ok {
		panic("nodes: no catalog definition for " + kind)
	}
	msgs := kindMessages[kind]
	return base{def: def, start: msgs[0], complete: msgs[1]}
}

// Definition реализует Kind.
func (b base) Definition() *domain.NodeDefinition {
	return b.def
}

// StartMessage реализует Kind.
func (b base) StartMessage(req *Request) string {
	return expandMessage(b.start, req)
}

// CompleteMessage возвращает сообщение о завершении для типа.
func (b base) CompleteMessage(req *Request) string {
	return expandMessage(b.complete, req)
}

// expandMessage подставляет {label} и {property} в шаблон сообщения.
func expandMessage(msg string, req *Request) string {
	if !strings.Contains(msg, "{") {
		return msg
	}
	if req.Node != nil {
		msg = strings.ReplaceAll(msg, "{label}", req.Node.DisplayName())
	}
	for key, val := range req.Properties {
		placeholder := "{" + key + "}"
		if strings.Contains(msg, placeholder) {
			msg = strings.ReplaceAll(msg, placeholder, fmt.Sprint(val))
		}
	}
	return msg
}

// GetString извлекает строковое значение свойства.
func GetString(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt извлекает числовое значение свойства.
func GetInt(props map[string]any, key string) int {
	if v, ok := props[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetFloat извлекает дробное значение свойства.
func GetFloat(props map[string]any, key string, defaultVal float64) float64 {
	if v, ok := props[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return defaultVal
}

// GetBool извлекает булево значение свойства.
func GetBool(props map[string]any, key string, defaultVal bool) bool {
	if v, ok := props[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetMapString извлекает map[string]string из свойства.
// Строковое значение разбирается как JSON-объект.
func GetMapString(props map[string]any, key string) map[string]string {
	v, ok := props[key]
	if !ok {
		return nil
	}
	if s, ok := v.(string); ok {
		v = parseJSONString(s)
	}
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		result := make(map[string]string, len(m))
		for k, val := range m {
			if s, ok := val.(string); ok {
				result[k] = s
			} else {
				result[k] = fmt.Sprint(val)
			}
		}
		return result
	}
	return nil
}

// checkContext возвращает ErrNodeCancelled, если ctx отменён.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err())
	default:
		return nil
	}
}
