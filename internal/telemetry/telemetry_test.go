package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/shaiso/flowforge/internal/domain"
)

func TestLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, LogLevel())

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, LogLevel())

	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewLogger(&buf, slog.LevelInfo, "TEXT").Debug("hidden")
	NewLogger(&buf, slog.LevelInfo, "TEXT").Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown k=v")
}

func TestMirrorRunLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	MirrorRunLog(context.Background(), logger, domain.LogEntry{
		RunID:    "run-1",
		NodeID:   "n1",
		NodeName: "Fetch",
		Level:    domain.LogError,
		Message:  "Error executing Fetch: boom",
	})

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "node_name=Fetch")
}

func TestContextLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

// gathered возвращает сумму значений счётчиков и gauge семейства name.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RunStarted()
	assert.Equal(t, float64(1), gathered(t, reg, "flowforge_runs_active"))

	m.ObserveNode("http-request", true, 20*time.Millisecond)
	m.ObserveNode("http-request", false, 10*time.Millisecond)
	m.RunFinished("failed")

	assert.Equal(t, float64(0), gathered(t, reg, "flowforge_runs_active"))
	assert.Equal(t, float64(1), gathered(t, reg, "flowforge_runs_total"))
	assert.Equal(t, float64(2), gathered(t, reg, "flowforge_node_executions_total"))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.RunStarted()
		nilMetrics.ObserveNode("x", true, time.Second)
		nilMetrics.RunFinished("success")
	})
}
