package orchestrator

import "errors"

// Ошибки контроллера.
var (
	// ErrNilFlow — Start вызван без flow.
	ErrNilFlow = errors.New("flow is nil")

	// ErrInvalidProperties — свойства узлов не прошли проверку по схеме
	// (только в режиме StrictProperties).
	ErrInvalidProperties = errors.New("invalid node properties")

	// ErrRunNotActive — run не выполняется этим контроллером.
	ErrRunNotActive = errors.New("run not in active runs")
)
