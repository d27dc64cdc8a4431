package flowio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/flowforge/internal/domain"
)

// FormatVersion — версия формата экспорта.
const FormatVersion = "1.0.0"

// ErrInvalidFlowFormat — данные не являются экспортированным flow.
var ErrInvalidFlowFormat = errors.New("invalid flow format")

// Format — формат сериализации.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"

	// FormatAuto — определить по содержимому (только для Import).
	FormatAuto Format = ""
)

// ParseFormat разбирает имя формата ("json", "yaml", "yml").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// ExportedFlow — переносимое представление flow без внутренних полей.
type ExportedFlow struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Nodes       []domain.FlowNode   `json:"nodes"`
	Edges       []domain.FlowEdge   `json:"edges"`
	Settings    domain.FlowSettings `json:"settings"`
	ExportedAt  time.Time           `json:"exportedAt"`
	Version     string              `json:"version"`
}

// Export сериализует flow. ID, статус и временные метки не экспортируются.
func Export(flow *domain.Flow, format Format) ([]byte, error) {
	if flow == nil {
		return nil, errors.New("flow is nil")
	}

	doc := ExportedFlow{
		Name:        flow.Name,
		Description: flow.Description,
		Nodes:       flow.Nodes,
		Edges:       flow.Edges,
		Settings:    flow.Settings,
		ExportedAt:  time.Now().UTC(),
		Version:     FormatVersion,
	}
	if doc.Nodes == nil {
		doc.Nodes = []domain.FlowNode{}
	}
	if doc.Edges == nil {
		doc.Edges = []domain.FlowEdge{}
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal flow: %w", err)
	}

	switch format {
	case FormatJSON, FormatAuto:
		return b, nil
	case FormatYAML:
		return jsonToYAML(b)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Validator проверяет импортированный flow (например, engine.Validate).
type Validator func(flow *domain.Flow) error

// ImportOptions — параметры Import.
type ImportOptions struct {
	// Format — формат данных (default: определить по содержимому).
	Format Format

	// Validate — дополнительная проверка flow (опционально).
	Validate Validator
}

// Import разбирает экспортированный flow и возвращает новый flow
// со свежим ID в статусе draft. Flow не сохраняется.
//
// Обязательны непустое name и массивы nodes и edges; иначе
// возвращается ErrInvalidFlowFormat.
//
// Свойства узлов декодируются как любой JSON в any: числа становятся
// float64, вложенные объекты — map[string]any. Так же flow читается из
// хранилища и API, поэтому Import(Export(f)) совпадает с f для flow,
// загруженного из JSON; у flow, собранного в Go с int в свойствах,
// значения вернутся как float64.
func Import(data []byte, opts ImportOptions) (*domain.Flow, error) {
	format := opts.Format
	if format == FormatAuto {
		format = detect(data)
	}

	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFlowFormat, err)
		}
		data = converted
	}

	var raw struct {
		Name        string              `json:"name"`
		Description string              `json:"description"`
		Nodes       json.RawMessage     `json:"nodes"`
		Edges       json.RawMessage     `json:"edges"`
		Settings    domain.FlowSettings `json:"settings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlowFormat, err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidFlowFormat)
	}
	if !isArray(raw.Nodes) || !isArray(raw.Edges) {
		return nil, fmt.Errorf("%w: nodes and edges must be arrays", ErrInvalidFlowFormat)
	}

	flow := &domain.Flow{
		ID:          uuid.NewString(),
		Name:        raw.Name,
		Description: raw.Description,
		Settings:    raw.Settings,
		Status:      domain.FlowStatusDraft,
	}
	if err := json.Unmarshal(raw.Nodes, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("%w: nodes: %v", ErrInvalidFlowFormat, err)
	}
	if err := json.Unmarshal(raw.Edges, &flow.Edges); err != nil {
		return nil, fmt.Errorf("%w: edges: %v", ErrInvalidFlowFormat, err)
	}

	if opts.Validate != nil {
		if err := opts.Validate(flow); err != nil {
			return nil, err
		}
	}
	return flow, nil
}

func detect(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// jsonToYAML перекодирует JSON в блочный YAML с сохранением порядка ключей.
func jsonToYAML(b []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// blockStyle сбрасывает flow-стиль JSON. Строки, похожие на числа
// или bool, encoder сам возьмёт в кавычки.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.New("empty document")
	}
	return json.Marshal(normalize(v))
}

// normalize приводит map[any]any из YAML к map[string]any для JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
