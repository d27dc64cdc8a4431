package nodes

import (
	"context"
	"fmt"
	"strings"
)

// SwitchNode — маршрутизация по значению поля.
//
// Свойства:
//
//	{
//	    "field": "order.status",
//	    "cases": [{"value": "paid", "output": "fulfil"}, {"value": "new", "output": "remind"}]
//	}
//
// Output: {"route": <output совпавшего case или "default">, "value": ..., "data": input}.
type SwitchNode struct{ base }

// switchCase — одна ветка switch.
type switchCase struct {
	Value  any    `json:"value"`
	Output string `json:"output"`
}

// NewSwitchNode создаёт новый SwitchNode.
func NewSwitchNode() *SwitchNode {
	return &SwitchNode{newBase(KindSwitch)}
}

// Execute выбирает ветку.
func (k *SwitchNode) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	field := GetString(req.Properties, "field")
	if field == "" {
		return nil, fmt.Errorf("%w: %s: field is required", ErrInvalidConfig, KindSwitch)
	}

	cases, err := parseCases(req.Properties["cases"])
	if err != nil {
		return nil, err
	}

	input := req.Input()
	value := valueAtPath(input, field)

	route := "default"
	for i, c := range cases {
		if fmt.Sprint(c.Value) == fmt.Sprint(value) {
			route = c.Output
			if route == "" {
				route = fmt.Sprintf("case%d", i)
			}
			break
		}
	}

	return &Result{
		Output: map[string]any{
			"route": route,
			"value": value,
			"data":  input,
		},
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"field": field, "route": route},
	}, nil
}

func parseCases(raw any) ([]switchCase, error) {
	if s, ok := raw.(string); ok {
		raw = parseJSONString(s)
	}
	if raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: cases must be a list", ErrInvalidConfig, KindSwitch)
	}

	cases := make([]switchCase, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: case must be an object", ErrInvalidConfig, KindSwitch)
		}
		out, _ := m["output"].(string)
		cases = append(cases, switchCase{Value: m["value"], Output: out})
	}
	return cases, nil
}

// valueAtPath достаёт значение по пути "a.b.c" из вложенных map.
func valueAtPath(data any, path string) any {
	cur := data
	for _, key := range strings.Split(path, ".") {
		if key == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// MergeNode — объединение входных потоков.
//
// Режимы:
//   - append — элементы всех входов подряд
//   - index  — объекты с одинаковым индексом сливаются
//   - key    — объекты с одинаковым значением свойства key сливаются
type MergeNode struct{ base }

// NewMergeNode создаёт новый MergeNode.
func NewMergeNode() *MergeNode {
	return &MergeNode{newBase(KindMerge)}
}

// Execute объединяет входы.
func (k *MergeNode) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	streams := make([][]any, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		streams = append(streams, asItems(in))
	}

	mode := GetString(req.Properties, "mode")
	var merged []any
	switch mode {
	case "", "append":
		mode = "append"
		for _, s := range streams {
			merged = append(merged, s...)
		}
	case "index":
		merged = mergeByIndex(streams)
	case "key":
		key := GetString(req.Properties, "key")
		if key == "" {
			return nil, fmt.Errorf("%w: %s: key is required for key mode", ErrInvalidConfig, KindMerge)
		}
		merged = mergeByKey(streams, key)
	default:
		return nil, fmt.Errorf("%w: %s: unknown mode %q", ErrInvalidConfig, KindMerge, mode)
	}
	if merged == nil {
		merged = []any{}
	}

	return &Result{
		Output:  merged,
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"mode": mode, "inputs": len(streams), "items": len(merged)},
	}, nil
}

func asItems(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func mergeByIndex(streams [][]any) []any {
	longest := 0
	for _, s := range streams {
		if len(s) > longest {
			longest = len(s)
		}
	}

	out := make([]any, 0, longest)
	for i := 0; i < longest; i++ {
		obj := make(map[string]any)
		for _, s := range streams {
			if i >= len(s) {
				continue
			}
			if m, ok := s[i].(map[string]any); ok {
				for k, v := range m {
					obj[k] = v
				}
			}
		}
		out = append(out, obj)
	}
	return out
}

func mergeByKey(streams [][]any, key string) []any {
	index := make(map[string]map[string]any)
	order := make([]string, 0)

	for _, s := range streams {
		for _, item := range s {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id := fmt.Sprint(m[key])
			obj, exists := index[id]
			if !exists {
				obj = make(map[string]any)
				index[id] = obj
				order = append(order, id)
			}
			for k, v := range m {
				obj[k] = v
			}
		}
	}

	out := make([]any, 0, len(order))
	for _, id := range order {
		out = append(out, index[id])
	}
	return out
}
