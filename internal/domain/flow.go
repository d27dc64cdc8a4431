package domain

import (
	"encoding/json"
	"time"
)

// Flow — определение рабочего процесса: именованный граф узлов и рёбер.
//
// Flow принадлежит слою хранения. Движок выполнения только читает его
// на время одного run и никогда не изменяет.
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID string `json:"id"`

	// Name — человекочитаемое имя flow.
	Name string `json:"name"`

	// Description — описание назначения flow.
	Description string `json:"description,omitempty"`

	// Nodes — узлы графа. Порядок объявления важен: он задаёт
	// детерминированный порядок обхода триггеров.
	Nodes []FlowNode `json:"nodes"`

	// Edges — рёбра графа (связи между handle'ами узлов).
	Edges []FlowEdge `json:"edges"`

	// Settings — настройки выполнения.
	Settings FlowSettings `json:"settings"`

	// Status — статус flow (draft/active/paused/archived).
	Status FlowStatus `json:"status"`

	// CreatedAt — время создания flow.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Node возвращает узел по ID или nil.
func (f *Flow) Node(id string) *FlowNode {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// NodesOfKind возвращает узлы заданного типа в порядке объявления.
func (f *Flow) NodesOfKind(kind string) []*FlowNode {
	nodes := make([]*FlowNode, 0)
	for i := range f.Nodes {
		if f.Nodes[i].Kind == kind {
			nodes = append(nodes, &f.Nodes[i])
		}
	}
	return nodes
}

// IsActive возвращает true, если flow может запускаться автоматически
// (по webhook, расписанию или событию).
func (f *Flow) IsActive() bool {
	return f.Status == FlowStatusActive
}

// Position — координаты узла на canvas. Выполнением игнорируются.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowNode — экземпляр узла внутри flow.
type FlowNode struct {
	// ID — уникальный идентификатор узла в рамках flow.
	ID string `json:"id"`

	// Kind — ссылка на тип узла в NodeRegistry (например, "http-request").
	Kind string `json:"kind"`

	// Label — отображаемое имя узла.
	Label string `json:"label,omitempty"`

	// Properties — значения свойств, проверяемые по схеме типа узла.
	Properties map[string]any `json:"properties,omitempty"`

	// Position — положение на canvas (только для layout).
	Position Position `json:"position"`
}

// DisplayName возвращает имя узла для логов и сообщений об ошибках.
func (n *FlowNode) DisplayName() string {
	switch {
	case n.Label != "":
		return n.Label
	case n.Kind != "":
		return n.Kind
	default:
		return n.ID
	}
}

// editorNodeData — форма поля data у узлов, сохранённых визуальным редактором.
type editorNodeData struct {
	NodeType   string         `json:"nodeType"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// UnmarshalJSON принимает как собственный формат узла, так и формат
// визуального редактора ({"type": "...", "data": {"nodeType": ...}}).
func (n *FlowNode) UnmarshalJSON(b []byte) error {
	type plain FlowNode
	var raw struct {
		plain
		Data *editorNodeData `json:"data,omitempty"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*n = FlowNode(raw.plain)
	if raw.Data != nil {
		if n.Kind == "" {
			n.Kind = raw.Data.NodeType
		}
		if n.Label == "" {
			n.Label = raw.Data.Label
		}
		if n.Properties == nil {
			n.Properties = raw.Data.Properties
		}
	}
	return nil
}

// FlowEdge — связь выходного handle одного узла с входным handle другого.
type FlowEdge struct {
	// ID — уникальный идентификатор ребра в рамках flow.
	ID string `json:"id"`

	// Source — ID узла-источника.
	Source string `json:"source"`

	// SourceHandle — ID выходного handle источника.
	SourceHandle string `json:"sourceHandle"`

	// Target — ID узла-приёмника.
	Target string `json:"target"`

	// TargetHandle — ID входного handle приёмника.
	TargetHandle string `json:"targetHandle"`

	// Label — подпись ребра (только для UI).
	Label string `json:"label,omitempty"`
}

// FlowSettings — настройки выполнения flow.
type FlowSettings struct {
	// Timeout — таймаут всего run в миллисекундах. 0 — без таймаута.
	Timeout int `json:"timeout,omitempty"`

	// RetryOnFail — повторять ли упавший узел.
	RetryOnFail bool `json:"retryOnFail,omitempty"`

	// RetryCount — количество повторов (без первой попытки).
	RetryCount int `json:"retryCount,omitempty"`

	// RetryDelayMs — пауза между попытками в миллисекундах.
	RetryDelayMs int `json:"retryDelayMs,omitempty"`

	// SaveToHistory — сохранять ли run в RunStore. nil означает true.
	SaveToHistory *bool `json:"saveToHistory,omitempty"`

	// NotifyOnSuccess — писать ли уведомление при успешном завершении.
	NotifyOnSuccess bool `json:"notifyOnSuccess,omitempty"`

	// NotifyOnFailure — писать ли уведомление при падении.
	NotifyOnFailure bool `json:"notifyOnFailure,omitempty"`
}

// ShouldSaveToHistory возвращает true, если run нужно сохранять.
func (s FlowSettings) ShouldSaveToHistory() bool {
	return s.SaveToHistory == nil || *s.SaveToHistory
}

// MaxAttempts возвращает максимальное количество попыток выполнения узла.
func (s FlowSettings) MaxAttempts() int {
	if !s.RetryOnFail || s.RetryCount <= 0 {
		return 1
	}
	return s.RetryCount + 1
}

// TimeoutDuration возвращает таймаут run как time.Duration.
func (s FlowSettings) TimeoutDuration() time.Duration {
	if s.Timeout <= 0 {
		return 0
	}
	return time.Duration(s.Timeout) * time.Millisecond
}

// RetryDelay возвращает паузу между попытками.
func (s FlowSettings) RetryDelay() time.Duration {
	if s.RetryDelayMs <= 0 {
		return 0
	}
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}
