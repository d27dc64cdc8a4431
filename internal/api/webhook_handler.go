package api

import (
	"bytes"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"strings"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/nodes"
	"github.com/shaiso/flowforge/internal/orchestrator"
)

// maxWebhookBody — предельный размер тела webhook.
const maxWebhookBody = 1 << 20

// WebhookRun — run, запущенный webhook'ом.
type WebhookRun struct {
	FlowID string `json:"flowId"`
	RunID  string `json:"runId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Webhook запускает активные flows, чей webhook-trigger слушает путь.
// ANY /webhook/{path...}
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	path := normalizeWebhookPath(r.PathValue("path"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	data := webhookData(body)

	flows, err := h.flows.List(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	var started []WebhookRun
	for _, flow := range flows {
		if !flow.IsActive() || !listensOn(flow, path, r.Method) {
			continue
		}

		runID, err := h.startAsync(r.Context(), flow, orchestrator.StartOptions{
			Trigger:     domain.TriggerWebhook,
			TriggerData: maps.Clone(data),
		})
		if err != nil {
			h.logger.Warn("webhook run not started", "flow_id", flow.ID, "path", path, "error", err)
			started = append(started, WebhookRun{FlowID: flow.ID, Error: err.Error()})
			continue
		}
		started = append(started, WebhookRun{FlowID: flow.ID, RunID: runID})
	}

	if len(started) == 0 {
		NotFound(w, "no active flow listens on this webhook")
		return
	}

	Accepted(w, started)
}

// listensOn проверяет, есть ли в flow webhook-trigger на path и method.
func listensOn(flow *domain.Flow, path, method string) bool {
	for _, node := range flow.NodesOfKind(nodes.KindWebhookTrigger) {
		if normalizeWebhookPath(nodes.GetString(node.Properties, "path")) != path {
			continue
		}
		want := nodes.GetString(node.Properties, "method")
		if want == "" {
			want = http.MethodPost
		}
		if strings.EqualFold(want, method) {
			return true
		}
	}
	return false
}

func normalizeWebhookPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}

// webhookData превращает тело запроса в данные запуска.
// JSON-объект передаётся как есть, остальное — в поле body.
func webhookData(body []byte) map[string]any {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]any{}
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return map[string]any{"body": string(body)}
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{"body": v}
}
