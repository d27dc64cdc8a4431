package orchestrator

import (
	"math"
	"time"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
)

// estimatedNodeTime — оценка времени выполнения одного узла для preview.
const estimatedNodeTime = 800 * time.Millisecond

// ExecutionPreview — порядок выполнения без запуска.
type ExecutionPreview struct {
	// Order — ID узлов в порядке выполнения.
	Order []string `json:"order"`

	// Nodes — отображаемые имена узлов в том же порядке.
	Nodes []string `json:"nodes"`

	// EstimatedTimeMs — оценка длительности run.
	EstimatedTimeMs int64 `json:"estimatedTime"`
}

// Preview вычисляет порядок выполнения flow без запуска.
// Пустой flow даёт пустой preview.
func Preview(flow *domain.Flow) (*ExecutionPreview, error) {
	if flow == nil || len(flow.Nodes) == 0 {
		return &ExecutionPreview{Order: []string{}, Nodes: []string{}}, nil
	}

	order, err := engine.Resolve(flow)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(order))
	for _, id := range order {
		names = append(names, flow.Node(id).DisplayName())
	}

	return &ExecutionPreview{
		Order:           order,
		Nodes:           names,
		EstimatedTimeMs: int64(len(order)) * estimatedNodeTime.Milliseconds(),
	}, nil
}

// DashboardStats — сводная статистика по flow и run.
type DashboardStats struct {
	TotalFlows  int `json:"totalFlows"`
	ActiveFlows int `json:"activeFlows"`
	TotalRuns   int `json:"totalRuns"`
	RunsLast24h int `json:"runsLast24h"`

	// SuccessRate — процент успешных run за 24 часа (100, если run не было).
	SuccessRate int `json:"successRate"`

	// FailedRuns — упавшие run за 24 часа.
	FailedRuns int `json:"failedRuns"`
}

// Stats считает статистику на момент now.
func Stats(flows []domain.Flow, runs []domain.Run, now time.Time) DashboardStats {
	stats := DashboardStats{
		TotalFlows:  len(flows),
		TotalRuns:   len(runs),
		SuccessRate: 100,
	}
	for i := range flows {
		if flows[i].IsActive() {
			stats.ActiveFlows++
		}
	}

	since := now.Add(-24 * time.Hour)
	succeeded := 0
	for i := range runs {
		r := &runs[i]
		if !r.CreatedAt.After(since) {
			continue
		}
		stats.RunsLast24h++
		switch r.Status {
		case domain.RunStatusSuccess:
			succeeded++
		case domain.RunStatusFailed:
			stats.FailedRuns++
		}
	}

	if stats.RunsLast24h > 0 {
		stats.SuccessRate = int(math.Round(float64(succeeded) / float64(stats.RunsLast24h) * 100))
	}
	return stats
}
