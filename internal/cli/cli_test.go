package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/flowforge/internal/api"
	"github.com/shaiso/flowforge/internal/config"
	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/nodes"
	"github.com/shaiso/flowforge/internal/orchestrator"
	"github.com/shaiso/flowforge/internal/store"
)

const localFlow = `{
  "name": "Local",
  "nodes": [
    {"id": "t", "kind": "manual-trigger", "label": "Start"},
    {"id": "log", "kind": "console-log", "label": "Log"}
  ],
  "edges": [
    {"id": "e1", "source": "t", "sourceHandle": "output", "target": "log", "targetHandle": "input"}
  ]
}`

const cyclicFlow = `{
  "name": "Loop",
  "nodes": [{"id": "a", "kind": "console-log"}, {"id": "b", "kind": "console-log"}],
  "edges": [
    {"id": "ab", "source": "a", "sourceHandle": "output", "target": "b", "targetHandle": "input"},
    {"id": "ba", "source": "b", "sourceHandle": "output", "target": "a", "targetHandle": "input"}
  ]
}`

func demoConfig() (*config.Config, error) {
	cfg, err := config.FromEnv(func(string) string { return "" })
	if err != nil {
		return nil, err
	}
	cfg.Demo = config.Demo{Enabled: true, MinDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return cfg, nil
}

// harness собирает корневую команду с выводом в буферы.
type harness struct {
	apiURL string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (h *harness) run(t *testing.T, jsonMode bool, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()

	clientFn := func() *Client { return NewClient(h.apiURL) }
	outputFn := func() *Output { return NewOutputTo(&h.stdout, &h.stderr, jsonMode) }

	root := &cobra.Command{Use: "flowforge", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewFlowCmd(clientFn, outputFn),
		NewRunCmd(clientFn, outputFn),
		NewStatsCmd(clientFn, outputFn),
	)
	root.AddCommand(NewLocalCmds(demoConfig, outputFn)...)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.Execute()
}

func newAPIServer(t *testing.T) string {
	t.Helper()

	kv := store.NewMemoryStore()
	require.NoError(t, kv.Open(context.Background()))
	runs := store.NewRunStore(kv, 0)
	flows := store.NewFlowStore(kv, runs)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	controller := orchestrator.New(orchestrator.Config{
		Registry: nodes.DemoRegistry(nodes.SimulationConfig{MinDelay: time.Millisecond, MaxDelay: time.Millisecond}),
		Runs:     runs,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Flows:      flows,
		Runs:       runs,
		Controller: controller,
		Logger:     logger,
	}).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckCmd(t *testing.T) {
	h := &harness{}

	require.NoError(t, h.run(t, false, "check", writeFile(t, "flow.json", localFlow)))
	assert.Contains(t, h.stderr.String(), `Flow "Local" is valid (2 nodes, 1 edges)`)

	err := h.run(t, false, "check", writeFile(t, "loop.json", cyclicFlow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow is invalid")

	assert.Error(t, h.run(t, false, "check", filepath.Join(t.TempDir(), "missing.json")))
}

func TestOrderCmd(t *testing.T) {
	h := &harness{}
	path := writeFile(t, "flow.json", localFlow)

	require.NoError(t, h.run(t, true, "order", path))
	var preview PreviewResponse
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &preview))
	assert.Equal(t, []string{"t", "log"}, preview.Order)
	assert.Equal(t, []string{"Start", "Log"}, preview.Nodes)

	require.NoError(t, h.run(t, true, "order", "--batches", path))
	var batches [][]string
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &batches))
	assert.Equal(t, [][]string{{"t"}, {"log"}}, batches)
}

func TestExecCmd(t *testing.T) {
	h := &harness{}
	path := writeFile(t, "flow.json", localFlow)

	require.NoError(t, h.run(t, false, "exec", path, "--input", "order=42"))
	out := h.stdout.String()
	assert.Contains(t, out, "Starting flow execution: Local")
	assert.Contains(t, out, "success")

	require.NoError(t, h.run(t, true, "exec", path, "--data", `{"order": 42}`))
	var run domain.Run
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &run))
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.NotEmpty(t, run.Logs)

	err := h.run(t, false, "exec", path, "--data", "[1]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --data")
}

func TestRemoteCommands(t *testing.T) {
	h := &harness{apiURL: newAPIServer(t)}

	// create
	require.NoError(t, h.run(t, true, "flow", "create", "--name", "Remote"))
	var created domain.Flow
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &created))
	assert.Contains(t, h.stderr.String(), "Flow created: "+created.ID)

	// import + activate
	require.NoError(t, h.run(t, true, "flow", "import", writeFile(t, "flow.json", localFlow)))
	var imported domain.Flow
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &imported))
	assert.Equal(t, "Local", imported.Name)

	require.NoError(t, h.run(t, false, "flow", "update", imported.ID, "--status", "ACTIVE"))
	assert.Contains(t, h.stdout.String(), "active")
	assert.Error(t, h.run(t, false, "flow", "update", imported.ID, "--status", "live"))

	// list
	require.NoError(t, h.run(t, true, "flow", "list"))
	var flows []domain.Flow
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &flows))
	assert.Len(t, flows, 2)

	// validate + preview
	require.NoError(t, h.run(t, false, "flow", "validate", imported.ID))
	assert.Contains(t, h.stderr.String(), "Flow is valid")
	require.NoError(t, h.run(t, false, "flow", "preview", imported.ID))
	assert.Contains(t, h.stdout.String(), "Start")

	// run
	require.NoError(t, h.run(t, false, "run", "start", imported.ID, "--wait", "--input", "k=v"))
	assert.Contains(t, h.stdout.String(), "Starting flow execution: Local")
	assert.Contains(t, h.stdout.String(), "success")

	require.NoError(t, h.run(t, true, "run", "list", "--flow-id", imported.ID))
	var runs []RunSummary
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].Status)

	require.NoError(t, h.run(t, true, "run", "show", runs[0].ID))
	var run domain.Run
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &run))
	assert.NotEmpty(t, run.Logs)

	err := h.run(t, false, "run", "cancel", runs[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLICT")

	// export
	out := filepath.Join(t.TempDir(), "exported.yaml")
	require.NoError(t, h.run(t, false, "flow", "export", imported.ID, "--format", "yaml", "-o", out))
	exported, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(exported), "name: Local")

	// stats
	require.NoError(t, h.run(t, true, "stats"))
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalFlows)
	assert.Equal(t, 1, stats.TotalRuns)

	// duplicate + delete
	require.NoError(t, h.run(t, true, "flow", "duplicate", imported.ID))
	var copied domain.Flow
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &copied))
	assert.Equal(t, "Local (Copy)", copied.Name)

	require.NoError(t, h.run(t, false, "flow", "delete", imported.ID))
	err = h.run(t, false, "flow", "show", imported.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestParseTriggerData(t *testing.T) {
	data, err := parseTriggerData(`{"a": 1, "b": "x"}`, []string{"b=y", "c=z=1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "y", "c": "z=1"}, data)

	data, err = parseTriggerData("", nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = parseTriggerData("", []string{"novalue"})
	assert.Error(t, err)
}
