package events

import "errors"

var (
	// ErrUnknownEvent — неизвестный тип события в Envelope.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrEmitterClosed — эмиссия после RunCompleted.
	ErrEmitterClosed = errors.New("emitter is closed")
)
