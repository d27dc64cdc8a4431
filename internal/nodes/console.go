package nodes

import (
	"context"
	"log/slog"
)

// ConsoleLog — вывод данных в лог процесса.
//
// Output: input при passthrough, иначе nil.
type ConsoleLog struct {
	base
	logger *slog.Logger
}

// NewConsoleLog создаёт новый ConsoleLog.
func NewConsoleLog(logger *slog.Logger) *ConsoleLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleLog{
		base:   newBase(KindConsoleLog),
		logger: logger,
	}
}

// Execute пишет input в slog.
func (k *ConsoleLog) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	logger := k.logger
	if req.Logger != nil {
		logger = req.Logger
	}

	msg := GetString(req.Properties, "message")
	if msg == "" {
		msg = req.Node.DisplayName()
	}
	level := ParseLevel(GetString(req.Properties, "logLevel"))
	logger.Log(ctx, level, msg, "data", req.Input())

	var output any
	if GetBool(req.Properties, "passthrough", true) {
		output = req.Input()
	}

	return &Result{
		Output:  output,
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"message": msg, "data": req.Input()},
	}, nil
}

// ParseLevel переводит уровень из свойств узла в slog.Level.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
