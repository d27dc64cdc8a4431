package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/flowforge/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunStartedResponse — ответ на асинхронный запуск.
type RunStartedResponse struct {
	RunID  string `json:"runId"`
	FlowID string `json:"flowId"`
	Status string `json:"status"`
}

// RunSummary — run без журнала.
type RunSummary struct {
	ID          string `json:"id"`
	FlowID      string `json:"flowId"`
	FlowName    string `json:"flowName"`
	Status      string `json:"status"`
	TriggerType string `json:"triggerType"`
	Error       string `json:"error,omitempty"`
	LogCount    int    `json:"logCount"`
	DurationMs  *int64 `json:"durationMs,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// ValidationResponse — результат проверки графа.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Error  string   `json:"error,omitempty"`
	NodeID string   `json:"nodeId,omitempty"`
	EdgeID string   `json:"edgeId,omitempty"`
	Cycle  []string `json:"cycle,omitempty"`
}

// PreviewResponse — порядок выполнения flow.
type PreviewResponse struct {
	Order         []string `json:"order"`
	Nodes         []string `json:"nodes"`
	EstimatedTime int64    `json:"estimatedTime"`
}

// StatsResponse — сводная статистика.
type StatsResponse struct {
	TotalFlows  int `json:"totalFlows"`
	ActiveFlows int `json:"activeFlows"`
	TotalRuns   int `json:"totalRuns"`
	RunsLast24h int `json:"runsLast24h"`
	SuccessRate int `json:"successRate"`
	FailedRuns  int `json:"failedRuns"`
}

// --- Request types ---

// UpdateFlowRequest — обновление flow.
type UpdateFlowRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// RunFlowRequest — запуск flow.
type RunFlowRequest struct {
	Data map[string]any `json:"data,omitempty"`
	Wait bool           `json:"wait,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	FlowID string
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для FlowForge API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Flows ---

// ListFlows возвращает все flows.
func (c *Client) ListFlows() ([]domain.Flow, error) {
	var flows []domain.Flow
	err := c.list("/api/v1/flows", nil, &flows)
	return flows, err
}

// CreateFlow создаёт новый flow.
func (c *Client) CreateFlow(flow *domain.Flow) (*domain.Flow, error) {
	var created domain.Flow
	err := c.post("/api/v1/flows", flow, &created)
	return &created, err
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(id string) (*domain.Flow, error) {
	var flow domain.Flow
	err := c.get("/api/v1/flows/"+id, &flow)
	return &flow, err
}

// UpdateFlow обновляет flow.
func (c *Client) UpdateFlow(id string, req UpdateFlowRequest) (*domain.Flow, error) {
	var flow domain.Flow
	err := c.put("/api/v1/flows/"+id, req, &flow)
	return &flow, err
}

// DeleteFlow удаляет flow вместе с историей run.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// DuplicateFlow копирует flow.
func (c *Client) DuplicateFlow(id string) (*domain.Flow, error) {
	var flow domain.Flow
	err := c.post("/api/v1/flows/"+id+"/duplicate", nil, &flow)
	return &flow, err
}

// PreviewFlow возвращает порядок выполнения.
func (c *Client) PreviewFlow(id string) (*PreviewResponse, error) {
	var preview PreviewResponse
	err := c.get("/api/v1/flows/"+id+"/preview", &preview)
	return &preview, err
}

// ValidateFlow проверяет граф flow на сервере.
func (c *Client) ValidateFlow(id string, strict bool) (*ValidationResponse, error) {
	var result ValidationResponse
	path := "/api/v1/flows/" + id + "/validate?strict=" + strconv.FormatBool(strict)
	err := c.post(path, nil, &result)
	return &result, err
}

// ExportFlow выгружает flow в формате format (json или yaml).
func (c *Client) ExportFlow(id, format string) ([]byte, error) {
	path := "/api/v1/flows/" + id + "/export?format=" + url.QueryEscape(format)
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// ImportFlow создаёт flow из экспортированного документа.
// Пустой format — автоопределение на сервере.
func (c *Client) ImportFlow(data []byte, format string) (*domain.Flow, error) {
	path := "/api/v1/flows/import"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	var flow domain.Flow
	err := c.post(path, nil, &flow, withRawBody(data))
	return &flow, err
}

// --- Runs ---

// StartRun запускает flow в фоне.
func (c *Client) StartRun(flowID string, data map[string]any) (*RunStartedResponse, error) {
	var started RunStartedResponse
	err := c.post("/api/v1/flows/"+flowID+"/run", RunFlowRequest{Data: data}, &started)
	return &started, err
}

// RunAndWait запускает flow и ждёт завершения run.
func (c *Client) RunAndWait(flowID string, data map[string]any) (*domain.Run, error) {
	var run domain.Run
	err := c.post("/api/v1/flows/"+flowID+"/run", RunFlowRequest{Data: data, Wait: true}, &run)
	return &run, err
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunSummary, error) {
	params := url.Values{}
	if opts.FlowID != "" {
		params.Set("flow_id", opts.FlowID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunSummary
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run с журналом.
func (c *Client) GetRun(id string) (*domain.Run, error) {
	var run domain.Run
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// CancelRun отменяет run.
func (c *Client) CancelRun(id string) error {
	return c.post("/api/v1/runs/"+id+"/cancel", nil, nil)
}

// DeleteRun удаляет run из истории.
func (c *Client) DeleteRun(id string) error {
	return c.delete("/api/v1/runs/" + id)
}

// Stats возвращает сводную статистику.
func (c *Client) Stats() (*StatsResponse, error) {
	var stats StatsResponse
	err := c.get("/api/v1/stats", &stats)
	return &stats, err
}

// --- HTTP helpers ---

type requestOption func(*requestBody)

type requestBody struct {
	raw []byte
}

// withRawBody отправляет тело как есть, без JSON-сериализации.
func withRawBody(b []byte) requestOption {
	return func(rb *requestBody) { rb.raw = b }
}

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any, opts ...requestOption) error {
	return c.doData(http.MethodPost, path, body, result, opts...)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any, opts ...requestOption) error {
	resp, err := c.do(method, path, body, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(dr.Data, result)
}

func (c *Client) do(method, path string, body any, opts ...requestOption) (*http.Response, error) {
	var rb requestBody
	for _, opt := range opts {
		opt(&rb)
	}

	var bodyReader io.Reader
	switch {
	case rb.raw != nil:
		bodyReader = bytes.NewReader(rb.raw)
	case body != nil:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if bodyReader != nil && rb.raw == nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
