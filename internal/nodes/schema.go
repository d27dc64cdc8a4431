package nodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/flowforge/internal/domain"
)

// ErrInvalidProperties — свойства узла не соответствуют схеме типа.
var ErrInvalidProperties = errors.New("node properties do not match schema")

// PropertyError — ошибки проверки свойств одного узла.
type PropertyError struct {
	NodeID   string
	Kind     string
	Problems []string
}

// Error реализует интерфейс error.
func (e *PropertyError) Error() string {
	return fmt.Sprintf("node %s (%s): %s", e.NodeID, e.Kind, strings.Join(e.Problems, "; "))
}

// Unwrap возвращает ErrInvalidProperties.
func (e *PropertyError) Unwrap() error {
	return ErrInvalidProperties
}

// ApplyDefaults возвращает копию props, дополненную значениями по умолчанию.
func ApplyDefaults(def *domain.NodeDefinition, props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+len(def.Properties))
	for k, v := range def.Defaults {
		out[k] = v
	}
	for _, p := range def.Properties {
		if _, ok := out[p.Name]; !ok && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	for k, v := range props {
		out[k] = v
	}
	return out
}

// ValidateProperties проверяет свойства узла по схеме его типа:
// обязательные свойства заданы, значения имеют нужный тип,
// select-значения входят в список вариантов.
func ValidateProperties(def *domain.NodeDefinition, props map[string]any) []string {
	problems := make([]string, 0)
	merged := ApplyDefaults(def, props)

	for _, p := range def.Properties {
		val := merged[p.Name]
		if isEmpty(val) {
			if p.Required {
				problems = append(problems, fmt.Sprintf("%s is required", p.Name))
			}
			continue
		}
		if msg := checkType(p, val); msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}

// ValidateFlow проверяет свойства всех узлов flow известных реестру типов.
// Узлы неизвестных типов пропускаются.
func ValidateFlow(r *Registry, flow *domain.Flow) error {
	errs := make([]error, 0)
	for i := range flow.Nodes {
		n := &flow.Nodes[i]
		def, ok := r.Definition(n.Kind)
		if !ok {
			continue
		}
		if problems := ValidateProperties(def, n.Properties); len(problems) > 0 {
			errs = append(errs, &PropertyError{NodeID: n.ID, Kind: n.Kind, Problems: problems})
		}
	}
	return errors.Join(errs...)
}

func checkType(p domain.PropertyDefinition, val any) string {
	switch p.Type {
	case domain.PropertyString, domain.PropertyText, domain.PropertyCode,
		domain.PropertyExpression, domain.PropertyCredential:
		if _, ok := val.(string); !ok {
			return fmt.Sprintf("%s must be a string", p.Name)
		}
	case domain.PropertyNumber:
		switch v := val.(type) {
		case int, int64, float64, float32:
		case string:
			var n json.Number
			if json.Unmarshal([]byte(v), &n) != nil {
				return fmt.Sprintf("%s must be a number", p.Name)
			}
		default:
			return fmt.Sprintf("%s must be a number", p.Name)
		}
	case domain.PropertyBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Sprintf("%s must be a boolean", p.Name)
		}
	case domain.PropertyJSON:
		if s, ok := val.(string); ok && strings.TrimSpace(s) != "" && !json.Valid([]byte(s)) {
			return fmt.Sprintf("%s must be valid JSON", p.Name)
		}
	case domain.PropertySelect:
		if len(p.Options) > 0 && !hasOption(p.Options, val) {
			return fmt.Sprintf("%s: %v is not an allowed value", p.Name, val)
		}
	case domain.PropertyMultiSelect:
		items, ok := val.([]any)
		if !ok {
			return fmt.Sprintf("%s must be a list", p.Name)
		}
		for _, item := range items {
			if !hasOption(p.Options, item) {
				return fmt.Sprintf("%s: %v is not an allowed value", p.Name, item)
			}
		}
	}
	return ""
}

func hasOption(opts []domain.PropertyOption, val any) bool {
	for _, o := range opts {
		if fmt.Sprint(o.Value) == fmt.Sprint(val) {
			return true
		}
	}
	return false
}

func isEmpty(val any) bool {
	if val == nil {
		return true
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
