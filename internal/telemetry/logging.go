package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shaiso/flowforge/internal/domain"
)

// ParseLevel разбирает DEBUG/INFO/WARN/ERROR без учёта регистра.
// Всё остальное — INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevel — уровень из LOG_LEVEL.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger создаёт логгер в w. format "text" — текстовый вывод,
// иначе JSON. На уровне DEBUG в записи добавляется source.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupLogger создаёт логгер процесса из LOG_LEVEL и LOG_FORMAT
// и делает его логгером по умолчанию.
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stdout, LogLevel(), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext достаёт логгер из контекста или возвращает slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithNodeID возвращает логгер с добавленными node_id и node_kind.
func WithNodeID(logger *slog.Logger, nodeID, kind string) *slog.Logger {
	return logger.With("node_id", nodeID, "node_kind", kind)
}

// WithFlowID возвращает логгер с добавленным flow_id.
func WithFlowID(logger *slog.Logger, flowID string) *slog.Logger {
	return logger.With("flow_id", flowID)
}

// SlogLevel переводит уровень записи лога run в slog.Level.
func SlogLevel(level domain.LogLevel) slog.Level {
	switch level {
	case domain.LogDebug:
		return slog.LevelDebug
	case domain.LogWarn:
		return slog.LevelWarn
	case domain.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MirrorRunLog пишет запись лога run в процессный логгер.
func MirrorRunLog(ctx context.Context, logger *slog.Logger, entry domain.LogEntry) {
	logger.Log(ctx, SlogLevel(entry.Level), entry.Message,
		"run_id", entry.RunID,
		"node_id", entry.NodeID,
		"node_name", entry.NodeName,
	)
}
