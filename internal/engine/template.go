package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"
	"text/template"
)

// Context — данные, доступные шаблонам в свойствах узлов:
//
//	{{ .Trigger.field }}                 данные запуска run
//	{{ .Input.field }}                   выход предшественника (или map по id при нескольких)
//	{{ .Nodes.<id>.Output.field }}       выход любого завершённого узла
//	{{ .RunID }}, {{ .FlowID }}
type Context struct {
	RunID   string                  `json:"runId"`
	FlowID  string                  `json:"flowId"`
	Trigger map[string]any          `json:"trigger"`
	Input   any                     `json:"input"`
	Nodes   map[string]*NodeContext `json:"nodes"`
}

// NodeContext — результат узла в шаблонах.
type NodeContext struct {
	Output any    `json:"output"`
	Status string `json:"status"`
}

// NewContext создаёт контекст run. nil trigger заменяется пустым map.
func NewContext(trigger map[string]any) *Context {
	if trigger == nil {
		trigger = map[string]any{}
	}
	return &Context{Trigger: trigger, Nodes: map[string]*NodeContext{}}
}

// AddNodeResult записывает результат узла. Не потокобезопасен:
// вызывающий сериализует запись сам.
func (c *Context) AddNodeResult(nodeID string, output any, status string) {
	c.Nodes[nodeID] = &NodeContext{Output: output, Status: status}
}

// ForNode возвращает снимок контекста для узла с заполненным Input:
// без предшественников — данные запуска, с одним — его выход,
// с несколькими — map id → выход. Снимок не меняется при
// дальнейших AddNodeResult на исходном контексте.
func (c *Context) ForNode(predecessors []string) *Context {
	snap := &Context{
		RunID:   c.RunID,
		FlowID:  c.FlowID,
		Trigger: c.Trigger,
		Nodes:   maps.Clone(c.Nodes),
	}

	switch len(predecessors) {
	case 0:
		snap.Input = c.Trigger
	case 1:
		if nc, ok := c.Nodes[predecessors[0]]; ok {
			snap.Input = nc.Output
		}
	default:
		merged := make(map[string]any, len(predecessors))
		for _, id := range predecessors {
			if nc, ok := c.Nodes[id]; ok {
				merged[id] = nc.Output
			}
		}
		snap.Input = merged
	}
	return snap
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"fromJSON": func(s string) any {
		var v any
		if json.Unmarshal([]byte(s), &v) != nil {
			return nil
		}
		return v
	},
	"default": func(def, val any) any {
		if isBlank(val) {
			return def
		}
		return val
	},
	"coalesce": func(vals ...any) any {
		for _, v := range vals {
			if !isBlank(v) {
				return v
			}
		}
		return nil
	},
	"get":       lookupPath,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"split":     func(sep, s string) []string { return strings.Split(s, sep) },
	"join":      func(sep string, items []string) string { return strings.Join(items, sep) },
}

// parsed кэширует разобранные шаблоны: одни и те же свойства
// рендерятся в каждом run.
var parsed sync.Map // string → *template.Template

func compile(src string) (*template.Template, error) {
	if t, ok := parsed.Load(src); ok {
		return t.(*template.Template), nil
	}
	t, err := template.New("property").Funcs(funcs).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	parsed.Store(src, t)
	return t, nil
}

// Render подставляет ctx в строку. Строки без "{{" возвращаются как есть.
func Render(src string, ctx *Context) (string, error) {
	if !strings.Contains(src, "{{") {
		return src, nil
	}
	t, err := compile(src)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// RenderValue рендерит строки внутри map и slice рекурсивно.
// Прочие значения возвращаются без изменений.
func RenderValue(value any, ctx *Context) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := RenderValue(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := RenderValue(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			r, err := Render(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			r, err := Render(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	default:
		return value, nil
	}
}

// RenderConfig рендерит свойства узла. nil даёт пустой map.
func RenderConfig(props map[string]any, ctx *Context) (map[string]any, error) {
	if props == nil {
		return map[string]any{}, nil
	}
	out, err := RenderValue(props, ctx)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// RenderCondition вычисляет выражение template pipeline как условие if.
// Пустое условие истинно.
func RenderCondition(cond string, ctx *Context) (bool, error) {
	if strings.TrimSpace(cond) == "" {
		return true, nil
	}
	out, err := Render("{{ if "+cond+" }}1{{ end }}", ctx)
	if err != nil {
		return false, err
	}
	return out == "1", nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// lookupPath идёт по пути "a.b.c" через вложенные map. nil, если путь обрывается.
func lookupPath(data any, path string) any {
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
