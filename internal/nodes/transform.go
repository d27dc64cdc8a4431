package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaiso/flowforge/internal/engine"
)

// JSONTransform — узел трансформации данных.
//
// Свойство expression — Go template, результат которого разбирается как JSON:
//
//	{
//	    "expression": "{\"total\": {{ len .Input.items }}, \"first\": {{ json (index .Input.items 0) }}}"
//	}
//
// Свойство может быть и объектом: тогда рендерится каждое строковое значение.
//
// Output: результат рендеринга (JSON-значение или строка).
type JSONTransform struct{ base }

// NewJSONTransform создаёт новый JSONTransform.
func NewJSONTransform() *JSONTransform {
	return &JSONTransform{newBase(KindJSONTransform)}
}

// Execute выполняет трансформацию.
func (k *JSONTransform) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	tmplCtx := req.Template
	if tmplCtx == nil {
		tmplCtx = engine.NewContext(nil)
	}

	var output any
	switch expr := req.Properties["expression"].(type) {
	case string:
		if strings.TrimSpace(expr) == "" {
			return nil, fmt.Errorf("%w: %s: expression is required", ErrInvalidConfig, KindJSONTransform)
		}
		rendered, err := engine.Render(expr, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		output = parseJSONString(rendered)

	case map[string]any:
		rendered, err := engine.RenderValue(expr, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		mapped := rendered.(map[string]any)
		for key, val := range mapped {
			if s, ok := val.(string); ok {
				mapped[key] = parseJSONString(s)
			}
		}
		output = mapped

	default:
		return nil, fmt.Errorf("%w: %s: expression must be a string or object", ErrInvalidConfig, KindJSONTransform)
	}

	return &Result{
		Output:  output,
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"outputType": fmt.Sprintf("%T", output)},
	}, nil
}

// parseJSONString пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func parseJSONString(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(trimmed), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	switch trimmed {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	return value
}
