package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
	"github.com/shaiso/flowforge/internal/events"
	"github.com/shaiso/flowforge/internal/nodes"
	"github.com/shaiso/flowforge/internal/orchestrator"
	"github.com/shaiso/flowforge/internal/store"
)

// waitKind — узел, ждущий отмены контекста.
type waitKind struct{}

func (waitKind) Definition() *domain.NodeDefinition {
	return &domain.NodeDefinition{
		ID:       "wait-node",
		Category: domain.NodeCategoryAction,
		Inputs:   []domain.HandleDefinition{{ID: "input", Multiple: true}},
		Outputs:  []domain.HandleDefinition{{ID: "output", Multiple: true}},
	}
}

func (waitKind) StartMessage(req *nodes.Request) string { return "Waiting" }

func (waitKind) Execute(ctx context.Context, _ *nodes.Request) (*nodes.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type testEnv struct {
	server *httptest.Server
	flows  *store.FlowStore
	runs   *store.RunStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	kv := store.NewMemoryStore()
	require.NoError(t, kv.Open(context.Background()))
	runs := store.NewRunStore(kv, 0)
	flows := store.NewFlowStore(kv, runs)

	registry := nodes.DemoRegistry(nodes.SimulationConfig{
		MinDelay: time.Millisecond,
		MaxDelay: time.Millisecond,
		Seed:     1,
	})
	registry.Register(waitKind{})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stream := events.NewBroadcaster()
	controller := orchestrator.New(orchestrator.Config{
		Registry:    registry,
		Runs:        runs,
		Subscribers: []events.Subscriber{stream},
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHandler(Config{
		Flows:       flows,
		Runs:        runs,
		Controller:  controller,
		Stream:      stream,
		BaseContext: ctx,
		Logger:      logger,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, flows: flows, runs: runs}
}

// do выполняет запрос и декодирует JSON-ответ в out (если out != nil).
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// createFlow сохраняет линейный flow: trigger -> steps...
func (e *testEnv) createFlow(t *testing.T, name string, status domain.FlowStatus, trigger domain.FlowNode, steps ...string) *domain.Flow {
	t.Helper()

	flow := &domain.Flow{Name: name, Status: status, Nodes: []domain.FlowNode{trigger}}
	prev := trigger.ID
	for i, kind := range steps {
		id := fmt.Sprintf("n%d", i+1)
		flow.Nodes = append(flow.Nodes, domain.FlowNode{ID: id, Kind: kind, Label: "Step " + id})
		flow.Edges = append(flow.Edges, domain.FlowEdge{
			ID: "e" + id, Source: prev, SourceHandle: "output", Target: id, TargetHandle: "input",
		})
		prev = id
	}
	require.NoError(t, e.flows.Create(context.Background(), flow))
	return flow
}

func manualTrigger() domain.FlowNode {
	return domain.FlowNode{ID: "t", Kind: nodes.KindManualTrigger, Label: "Start"}
}

func webhookTrigger(path, method string) domain.FlowNode {
	props := map[string]any{"path": path}
	if method != "" {
		props["method"] = method
	}
	return domain.FlowNode{ID: "t", Kind: nodes.KindWebhookTrigger, Label: "Hook", Properties: props}
}

type dataEnvelope[T any] struct {
	Data  T   `json:"data"`
	Total int `json:"total"`
}

func TestFlowCRUD(t *testing.T) {
	env := newTestEnv(t)

	var created dataEnvelope[domain.Flow]
	status := env.do(t, http.MethodPost, "/api/v1/flows", map[string]any{
		"name":  "Orders",
		"nodes": []map[string]any{{"id": "t", "kind": nodes.KindManualTrigger}},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.Data.ID)
	assert.Equal(t, domain.FlowStatusDraft, created.Data.Status)
	id := created.Data.ID

	var got dataEnvelope[domain.Flow]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/flows/"+id, nil, &got))
	assert.Equal(t, "Orders", got.Data.Name)
	require.Len(t, got.Data.Nodes, 1)

	var updated dataEnvelope[domain.Flow]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/v1/flows/"+id, map[string]any{
		"name":   "Orders v2",
		"status": "active",
	}, &updated))
	assert.Equal(t, "Orders v2", updated.Data.Name)
	assert.Equal(t, domain.FlowStatusActive, updated.Data.Status)

	var copied dataEnvelope[domain.Flow]
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/flows/"+id+"/duplicate", nil, &copied))
	assert.Equal(t, "Orders v2 (Copy)", copied.Data.Name)
	assert.Equal(t, domain.FlowStatusDraft, copied.Data.Status)

	var list dataEnvelope[[]domain.Flow]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/flows", nil, &list))
	assert.Equal(t, 2, list.Total)

	var active dataEnvelope[[]domain.Flow]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/flows?status=active", nil, &active))
	require.Equal(t, 1, active.Total)
	assert.Equal(t, id, active.Data[0].ID)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/flows/"+id, nil, nil))

	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/flows/"+id, nil, &errResp))
	assert.Equal(t, ErrCodeNotFound, errResp.Error.Code)
}

func TestFlowRequestErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/v1/flows", "{", http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/v1/flows", map[string]any{}, http.StatusBadRequest},
		{"bad status", http.MethodPost, "/api/v1/flows", map[string]any{"name": "x", "status": "live"}, http.StatusBadRequest},
		{"update missing flow", http.MethodPut, "/api/v1/flows/nope", map[string]any{"name": "x"}, http.StatusNotFound},
		{"delete missing flow", http.MethodDelete, "/api/v1/flows/nope", nil, http.StatusNotFound},
		{"bad list filter", http.MethodGet, "/api/v1/flows?status=live", nil, http.StatusBadRequest},
		{"bad export format", http.MethodGet, "/api/v1/flows/nope/export?format=xml", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			assert.Equal(t, tt.want, env.do(t, tt.method, tt.path, tt.body, &resp))
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestRunFlowWait(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Sync", domain.FlowStatusActive, manualTrigger(), nodes.KindConsoleLog)

	var run dataEnvelope[domain.Run]
	status := env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/run?wait=true",
		map[string]any{"data": map[string]any{"orderId": 7}}, &run)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.RunStatusSuccess, run.Data.Status)
	assert.Equal(t, domain.TriggerManual, run.Data.TriggerType)
	assert.NotEmpty(t, run.Data.Logs)

	var stored dataEnvelope[domain.Run]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/runs/"+run.Data.ID, nil, &stored))
	assert.Equal(t, run.Data.Logs, stored.Data.Logs)

	var history dataEnvelope[[]RunSummary]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/flows/"+flow.ID+"/runs", nil, &history))
	require.Equal(t, 1, history.Total)
	assert.Equal(t, len(run.Data.Logs), history.Data[0].LogCount)
}

func TestRunFlowAsync(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Async", domain.FlowStatusDraft, manualTrigger(), nodes.KindConsoleLog)

	var started dataEnvelope[RunStartedResponse]
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/run", nil, &started))
	require.NotEmpty(t, started.Data.RunID)
	assert.Equal(t, flow.ID, started.Data.FlowID)

	require.Eventually(t, func() bool {
		run, err := env.runs.Get(context.Background(), started.Data.RunID)
		return err == nil && run.Status == domain.RunStatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunFlowInvalidGraph(t *testing.T) {
	env := newTestEnv(t)

	flow := &domain.Flow{
		Name: "Loop",
		Nodes: []domain.FlowNode{
			{ID: "a", Kind: nodes.KindConsoleLog},
			{ID: "b", Kind: nodes.KindConsoleLog},
		},
		Edges: []domain.FlowEdge{
			{ID: "ab", Source: "a", SourceHandle: "output", Target: "b", TargetHandle: "input"},
			{ID: "ba", Source: "b", SourceHandle: "output", Target: "a", TargetHandle: "input"},
		},
	}
	require.NoError(t, env.flows.Create(context.Background(), flow))

	var errResp ErrorResponse
	assert.Equal(t, http.StatusUnprocessableEntity,
		env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/run", nil, &errResp))
	assert.Equal(t, ErrCodeValidation, errResp.Error.Code)

	var validation dataEnvelope[ValidationResponse]
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/validate", nil, &validation))
	assert.False(t, validation.Data.Valid)
	assert.NotEmpty(t, validation.Data.Cycle)

	runs, err := env.runs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestValidateFlowStrict(t *testing.T) {
	env := newTestEnv(t)
	// webhook-trigger без обязательного path
	flow := env.createFlow(t, "Hook", domain.FlowStatusDraft,
		domain.FlowNode{ID: "t", Kind: nodes.KindWebhookTrigger}, nodes.KindConsoleLog)

	var lax dataEnvelope[ValidationResponse]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/validate", nil, &lax))
	assert.True(t, lax.Data.Valid)

	var strict dataEnvelope[ValidationResponse]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/validate?strict=true", nil, &strict))
	assert.False(t, strict.Data.Valid)
	assert.Contains(t, strict.Data.Error, "path")
}

func TestPreviewFlow(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Preview", domain.FlowStatusDraft, manualTrigger(),
		nodes.KindConsoleLog, nodes.KindConsoleLog)

	var preview dataEnvelope[orchestrator.ExecutionPreview]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/flows/"+flow.ID+"/preview", nil, &preview))
	assert.Equal(t, []string{"t", "n1", "n2"}, preview.Data.Order)
	assert.Equal(t, []string{"Start", "Step n1", "Step n2"}, preview.Data.Nodes)
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Portable", domain.FlowStatusActive, manualTrigger(), nodes.KindConsoleLog)

	resp, err := http.Get(env.server.URL + "/api/v1/flows/" + flow.ID + "/export?format=yaml")
	require.NoError(t, err)
	exported, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), flow.ID+".yaml")
	assert.Contains(t, string(exported), "name: Portable")

	var imported dataEnvelope[domain.Flow]
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/flows/import", string(exported), &imported))
	assert.NotEqual(t, flow.ID, imported.Data.ID)
	assert.Equal(t, "Portable", imported.Data.Name)
	assert.Equal(t, domain.FlowStatusDraft, imported.Data.Status)
	assert.Len(t, imported.Data.Nodes, 2)
	assert.Len(t, imported.Data.Edges, 1)

	stored, err := env.flows.Get(context.Background(), imported.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, "Portable", stored.Name)
}

func TestImportFlowErrors(t *testing.T) {
	env := newTestEnv(t)

	var bad ErrorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/flows/import", `{"nodes": []}`, &bad))
	assert.Equal(t, ErrCodeInvalidFormat, bad.Error.Code)

	cyclic := `{"name": "Loop", "nodes": [
		{"id": "a", "kind": "console-log"}, {"id": "b", "kind": "console-log"}],
		"edges": [
		{"id": "ab", "source": "a", "sourceHandle": "output", "target": "b", "targetHandle": "input"},
		{"id": "ba", "source": "b", "sourceHandle": "output", "target": "a", "targetHandle": "input"}]}`
	var invalid ErrorResponse
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/v1/flows/import", cyclic, &invalid))
	assert.Equal(t, ErrCodeValidation, invalid.Error.Code)

	flows, err := env.flows.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestCancelRun(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Blocking", domain.FlowStatusActive, manualTrigger(), "wait-node")

	var started dataEnvelope[RunStartedResponse]
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/run", nil, &started))
	runID := started.Data.RunID

	require.Eventually(t, func() bool {
		return env.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/progress", nil, nil) == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/cancel", nil, nil))

	require.Eventually(t, func() bool {
		run, err := env.runs.Get(context.Background(), runID)
		return err == nil && run.Status == domain.RunStatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/cancel", nil, &errResp))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/progress", nil, nil))
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t)
	first := env.createFlow(t, "First", domain.FlowStatusActive, manualTrigger(), nodes.KindConsoleLog)
	second := env.createFlow(t, "Second", domain.FlowStatusActive, manualTrigger())

	for range 2 {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/flows/"+first.ID+"/run?wait=true", nil, nil))
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/flows/"+second.ID+"/run?wait=true", nil, nil))

	var all dataEnvelope[[]RunSummary]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/runs", nil, &all))
	assert.Equal(t, 3, all.Total)

	var byFlow dataEnvelope[[]RunSummary]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/runs?flow_id="+first.ID, nil, &byFlow))
	assert.Equal(t, 2, byFlow.Total)

	var limited dataEnvelope[[]RunSummary]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/runs?limit=1&status=success", nil, &limited))
	assert.Equal(t, 1, limited.Total)

	var failed dataEnvelope[[]RunSummary]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/runs?status=failed", nil, &failed))
	assert.Zero(t, failed.Total)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/runs?limit=-1", nil, nil))

	id := all.Data[0].ID
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/runs/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/runs/"+id, nil, nil))
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)
	hook := env.createFlow(t, "Hook", domain.FlowStatusActive, webhookTrigger("/orders", ""), nodes.KindConsoleLog)
	env.createFlow(t, "Paused hook", domain.FlowStatusPaused, webhookTrigger("orders", ""))
	env.createFlow(t, "Get hook", domain.FlowStatusActive, webhookTrigger("status", "GET"))

	var started dataEnvelope[[]WebhookRun]
	require.Equal(t, http.StatusAccepted,
		env.do(t, http.MethodPost, "/webhook/orders", map[string]any{"id": 42}, &started))
	require.Len(t, started.Data, 1)
	assert.Equal(t, hook.ID, started.Data[0].FlowID)
	require.NotEmpty(t, started.Data[0].RunID)

	require.Eventually(t, func() bool {
		run, err := env.runs.Get(context.Background(), started.Data[0].RunID)
		return err == nil && run.Status == domain.RunStatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
	run, err := env.runs.Get(context.Background(), started.Data[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerWebhook, run.TriggerType)

	assert.Equal(t, http.StatusAccepted, env.do(t, http.MethodGet, "/webhook/status", nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/webhook/status", nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/webhook/unknown", nil, nil))
}

func TestWebhookData(t *testing.T) {
	assert.Equal(t, map[string]any{}, webhookData(nil))
	assert.Equal(t, map[string]any{"a": float64(1)}, webhookData([]byte(`{"a": 1}`)))
	assert.Equal(t, map[string]any{"body": []any{float64(1), float64(2)}}, webhookData([]byte(`[1, 2]`)))
	assert.Equal(t, map[string]any{"body": "plain text"}, webhookData([]byte("plain text")))
}

func TestStreamRuns(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Streamed", domain.FlowStatusActive, manualTrigger(), nodes.KindConsoleLog)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/runs/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var run dataEnvelope[domain.Run]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/run?wait=true", nil, &run))

	var kinds []events.Kind
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := events.Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, run.Data.ID, ev.Run())
		kinds = append(kinds, ev.Kind())
		if ev.Kind() == events.KindRunCompleted {
			break
		}
	}

	assert.Equal(t, events.KindLogAppended, kinds[0])
	assert.Contains(t, kinds, events.KindNodeStarted)
	assert.Contains(t, kinds, events.KindNodeCompleted)
}

func TestStreamRunsFilter(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Filtered", domain.FlowStatusActive, manualTrigger())

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/runs/stream?run_id=other"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/run?wait=true", nil, nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestPublishFlowEventWithoutQueue(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Queued", domain.FlowStatusActive, manualTrigger())

	var errResp ErrorResponse
	assert.Equal(t, http.StatusServiceUnavailable,
		env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/events", nil, &errResp))
	assert.Equal(t, ErrCodeUnavailable, errResp.Error.Code)
}

func TestNodeTypesAndStats(t *testing.T) {
	env := newTestEnv(t)
	flow := env.createFlow(t, "Counted", domain.FlowStatusActive, manualTrigger())
	env.createFlow(t, "Draft", domain.FlowStatusDraft, manualTrigger())
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID+"/run?wait=true", nil, nil))

	var types dataEnvelope[[]domain.NodeDefinition]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/node-types", nil, &types))
	assert.Equal(t, len(nodes.CatalogKinds())+1, types.Total)

	var stats dataEnvelope[orchestrator.DashboardStats]
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/stats", nil, &stats))
	assert.Equal(t, 2, stats.Data.TotalFlows)
	assert.Equal(t, 1, stats.Data.ActiveFlows)
	assert.Equal(t, 1, stats.Data.TotalRuns)
	assert.Equal(t, 100, stats.Data.SuccessRate)
}

func TestHandleStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code ErrorCode
	}{
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"exists", store.ErrAlreadyExists, http.StatusConflict, ErrCodeConflict},
		{"validation", engine.NewValidationError("a", "", "bad", engine.ErrDanglingEdge), http.StatusUnprocessableEntity, ErrCodeValidation},
		{"properties", fmt.Errorf("%w: x", orchestrator.ErrInvalidProperties), http.StatusUnprocessableEntity, ErrCodeValidation},
		{"run not active", orchestrator.ErrRunNotActive, http.StatusConflict, ErrCodeConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.True(t, HandleStoreError(rec, logger, tt.err, "missing"))
			assert.Equal(t, tt.want, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	assert.False(t, HandleStoreError(httptest.NewRecorder(), logger, nil, ""))
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(Recovery(logger), Logging(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
