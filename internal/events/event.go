package events

import (
	"encoding/json"
	"time"

	"github.com/shaiso/flowforge/internal/domain"
)

// Kind — тип события.
type Kind string

const (
	KindNodeStarted   Kind = "node-start"
	KindNodeCompleted Kind = "node-complete"
	KindLogAppended   Kind = "log"
	KindRunCompleted  Kind = "run-complete"
)

// Event — событие выполнения run.
//
// Реализуется только типами этого пакета.
type Event interface {
	Kind() Kind
	Run() string
	isEvent()
}

// NodeStarted — узел начал выполнение.
type NodeStarted struct {
	RunID    string    `json:"runId"`
	NodeID   string    `json:"nodeId"`
	NodeName string    `json:"nodeName"`
	NodeKind string    `json:"nodeKind"`
	At       time.Time `json:"at"`
}

// NodeCompleted — узел завершил выполнение.
type NodeCompleted struct {
	RunID      string    `json:"runId"`
	NodeID     string    `json:"nodeId"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Attempts   int       `json:"attempts"`
	At         time.Time `json:"at"`
}

// LogAppended — в журнал run добавлена запись.
type LogAppended struct {
	Entry domain.LogEntry `json:"entry"`
}

// RunCompleted — run перешёл в терминальный статус.
// Run — снимок, подписчик может хранить его.
type RunCompleted struct {
	Snapshot *domain.Run `json:"run"`
}

func (NodeStarted) Kind() Kind   { return KindNodeStarted }
func (NodeCompleted) Kind() Kind { return KindNodeCompleted }
func (LogAppended) Kind() Kind   { return KindLogAppended }
func (RunCompleted) Kind() Kind  { return KindRunCompleted }

func (e NodeStarted) Run() string   { return e.RunID }
func (e NodeCompleted) Run() string { return e.RunID }
func (e LogAppended) Run() string   { return e.Entry.RunID }
func (e RunCompleted) Run() string {
	if e.Snapshot == nil {
		return ""
	}
	return e.Snapshot.ID
}

func (NodeStarted) isEvent()   {}
func (NodeCompleted) isEvent() {}
func (LogAppended) isEvent()   {}
func (RunCompleted) isEvent()  {}

// Envelope — сериализованная форма события для websocket и RabbitMQ.
type Envelope struct {
	Type  Kind            `json:"type"`
	RunID string          `json:"runId"`
	Data  json.RawMessage `json:"data"`
}

// Marshal сериализует событие в Envelope JSON.
func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:  e.Kind(),
		RunID: e.Run(),
		Data:  data,
	})
}

// Unmarshal восстанавливает событие из Envelope JSON.
func Unmarshal(b []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}

	var (
		e   Event
		err error
	)
	switch env.Type {
	case KindNodeStarted:
		var v NodeStarted
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindNodeCompleted:
		var v NodeCompleted
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindLogAppended:
		var v LogAppended
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindRunCompleted:
		var v RunCompleted
		err = json.Unmarshal(env.Data, &v)
		e = v
	default:
		return nil, ErrUnknownEvent
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
