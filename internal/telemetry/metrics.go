package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики выполнения flow.
//
// Все методы безопасны для nil-получателя: компоненты без метрик
// просто передают nil.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RunsActive     prometheus.Gauge
	NodeExecutions *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
	EventsDropped  prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
// reg == nil означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowforge_runs_total",
			Help: "Finished flow runs by terminal status",
		}, []string{"status"}),
		RunsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowforge_runs_active",
			Help: "Flow runs currently in progress",
		}),
		NodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowforge_node_executions_total",
			Help: "Node executions by kind and outcome",
		}, []string{"kind", "status"}),
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowforge_node_duration_seconds",
			Help:    "Node execution latency including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowforge_stream_events_dropped_total",
			Help: "Run events dropped for slow stream subscribers",
		}),
	}
}

// RunStarted увеличивает счётчик активных run.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsActive.Inc()
}

// RunFinished фиксирует завершение run со статусом status.
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.RunsActive.Dec()
	m.RunsTotal.WithLabelValues(status).Inc()
}

// ObserveNode фиксирует выполнение узла.
func (m *Metrics) ObserveNode(kind string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	m.NodeExecutions.WithLabelValues(kind, status).Inc()
	m.NodeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// EventsDroppedAdd учитывает n отброшенных событий потока.
func (m *Metrics) EventsDroppedAdd(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.EventsDropped.Add(float64(n))
}
