package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPRequest — узел HTTP запроса.
//
// Свойства:
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/data",
//	    "headers": {"Authorization": "Bearer {{ .Trigger.token }}"},
//	    "body": {"data": "{{ .Input.items }}"},
//	    "timeout": 30000
//	}
//
// Output:
//
//	{
//	    "statusCode": 200,
//	    "headers": {"Content-Type": "application/json", ...},
//	    "body": {...}  // parsed JSON or string
//	}
//
// Ответ со статусом >= 400 считается ошибкой узла.
type HTTPRequest struct {
	base
	client *http.Client
}

// NewHTTPRequest создаёт новый HTTPRequest.
// client == nil означает клиент с таймаутом по умолчанию.
func NewHTTPRequest(client *http.Client) *HTTPRequest {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPRequest{
		base:   newBase(KindHTTPRequest),
		client: client,
	}
}

// httpConfig — распарсенные свойства HTTP узла.
type httpConfig struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// Execute выполняет HTTP запрос.
func (k *HTTPRequest) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg, err := k.parseConfig(req.Properties)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	httpReq, err := k.buildRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := k.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	output, err := k.parseResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	return &Result{
		Output:  output,
		Message: k.CompleteMessage(req),
		Data: map[string]any{
			"method":     cfg.Method,
			"url":        cfg.URL,
			"statusCode": resp.StatusCode,
			"latencyMs":  time.Since(start).Milliseconds(),
		},
	}, nil
}

// parseConfig парсит свойства HTTP узла.
func (k *HTTPRequest) parseConfig(props map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:  strings.ToUpper(GetString(props, "method")),
		URL:     GetString(props, "url"),
		Headers: GetMapString(props, "headers"),
		Body:    props["body"],
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, KindHTTPRequest)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	if ms := GetInt(props, "timeout"); ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	if s, ok := cfg.Body.(string); ok && strings.TrimSpace(s) == "" {
		cfg.Body = nil
	}

	return cfg, nil
}

// buildRequest создаёт HTTP запрос.
func (k *HTTPRequest) buildRequest(ctx context.Context, cfg *httpConfig) (*http.Request, error) {
	var bodyReader io.Reader

	if cfg.Body != nil && cfg.Method != http.MethodGet {
		bodyBytes, err := serializeBody(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, hasContentType := cfg.Headers["Content-Type"]; !hasContentType {
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseResponse читает ответ с ограничением размера.
func (k *HTTPRequest) parseResponse(resp *http.Response) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"statusCode": resp.StatusCode,
		"headers":    headers,
		"body":       body,
	}, nil
}

// HTTPError — ответ с кодом ошибки.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
