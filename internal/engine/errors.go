package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки валидации графа flow.
var (
	// ErrDanglingEdge — ребро ссылается на несуществующий узел.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrUnknownHandle — ребро использует handle, не объявленный типом узла.
	ErrUnknownHandle = errors.New("edge references unknown handle")

	// ErrHandleOccupied — несколько рёбер на входной handle без multiple.
	// Частный случай ErrUnknownHandle.
	ErrHandleOccupied = fmt.Errorf("%w: handle does not accept multiple edges", ErrUnknownHandle)

	// ErrCyclicGraph — обнаружен цикл в графе.
	ErrCyclicGraph = errors.New("flow graph contains a cycle")

	// ErrEmptyFlow — flow не содержит узлов.
	ErrEmptyFlow = errors.New("flow has no nodes")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrDuplicateEdgeID — несколько рёбер с одинаковым ID.
	ErrDuplicateEdgeID = errors.New("duplicate edge ID")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации графа с контекстом.
//
// Все ошибки валидации оборачиваются в ValidationError, поэтому
// errors.As(err, *ValidationError) отличает их от прочих ошибок запуска.
type ValidationError struct {
	NodeID  string   // ID узла, где произошла ошибка
	EdgeID  string   // ID ребра, где произошла ошибка
	Handle  string   // handle, вызвавший ошибку
	Cycle   []string // узлы цикла для ErrCyclicGraph
	Message string   // описание ошибки
	Err     error    // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	switch {
	case len(e.Cycle) > 0:
		return e.Message + ": " + strings.Join(e.Cycle, " -> ")
	case e.EdgeID != "":
		return "edge " + e.EdgeID + ": " + e.Message
	case e.NodeID != "":
		return "node " + e.NodeID + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, edgeID, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		EdgeID:  edgeID,
		Message: message,
		Err:     err,
	}
}

// IsValidationError возвращает true для ошибок валидации графа.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
