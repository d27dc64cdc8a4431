package executor

import "errors"

// Ошибки выполнения узлов.
var (
	// ErrUnknownNodeKind — тип узла не зарегистрирован в реестре.
	ErrUnknownNodeKind = errors.New("unknown node kind")

	// ErrNodeExecution — поведение узла завершилось ошибкой или паникой.
	ErrNodeExecution = errors.New("node execution failed")
)

// NodeError — ошибка выполнения конкретного узла.
//
// Error() возвращает только причину: она попадает в лог run
// и в предложение Run.Error как есть.
type NodeError struct {
	NodeID   string
	Kind     string
	Attempts int
	Err      error
}

// Error реализует интерфейс error.
func (e *NodeError) Error() string {
	return e.Err.Error()
}

// Unwrap позволяет errors.Is находить и ErrNodeExecution, и исходную причину.
func (e *NodeError) Unwrap() []error {
	return []error{ErrNodeExecution, e.Err}
}
