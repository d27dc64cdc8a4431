package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
)

// newRequest собирает Request для узла с применёнными значениями по умолчанию.
func newRequest(t *testing.T, k Kind, props map[string]any, tc *engine.Context, inputs ...any) *Request {
	t.Helper()
	if tc == nil {
		tc = engine.NewContext(nil)
	}
	if len(inputs) == 1 {
		tc.Input = inputs[0]
	}

	node := &domain.FlowNode{ID: "n1", Kind: k.Definition().ID, Label: "Node One", Properties: props}
	rendered, err := engine.RenderConfig(ApplyDefaults(k.Definition(), props), tc)
	require.NoError(t, err)
	return &Request{Node: node, Properties: rendered, Template: tc, Inputs: inputs, Attempt: 1}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())

	r.Register(NewConsoleLog(nil))
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Has(KindConsoleLog))

	k, err := r.Get(KindConsoleLog)
	require.NoError(t, err)
	assert.Equal(t, KindConsoleLog, k.Definition().ID)

	_, err = r.Get("unknown")
	assert.ErrorIs(t, err, ErrKindNotFound)

	def, ok := r.Definition(KindConsoleLog)
	require.True(t, ok)
	assert.Equal(t, "Console Log", def.Name)

	r.Unregister(KindConsoleLog)
	assert.False(t, r.Has(KindConsoleLog))
}

func TestDefaultRegistry_CoversCatalog(t *testing.T) {
	r := DefaultRegistry(Options{})
	assert.Equal(t, CatalogKinds(), r.Types())
	assert.Len(t, r.Definitions(), 13)

	demo := DemoRegistry(SimulationConfig{})
	assert.Equal(t, r.Types(), demo.Types())
}

func TestCatalog_Handles(t *testing.T) {
	ifDef, _ := Definition(KindIf)
	_, ok := ifDef.Output("true")
	assert.True(t, ok)
	_, ok = ifDef.Output("output")
	assert.False(t, ok)

	mergeDef, _ := Definition(KindMerge)
	h, ok := mergeDef.Input("input1")
	require.True(t, ok)
	assert.False(t, h.Multiple)

	trigger, _ := Definition(KindManualTrigger)
	assert.Empty(t, trigger.Inputs)
	assert.True(t, trigger.IsTrigger())
}

func TestValidateProperties(t *testing.T) {
	def, _ := Definition(KindHTTPRequest)

	assert.Empty(t, ValidateProperties(def, map[string]any{"url": "https://example.com"}))

	problems := ValidateProperties(def, map[string]any{"method": "TRACE", "timeout": "soon"})
	assert.Contains(t, problems, "url is required")
	assert.Contains(t, problems, "method: TRACE is not an allowed value")
	assert.Contains(t, problems, "timeout must be a number")

	flow := &domain.Flow{Nodes: []domain.FlowNode{
		{ID: "a", Kind: KindHTTPRequest},
		{ID: "b", Kind: "custom-kind"},
	}}
	err := ValidateFlow(DefaultRegistry(Options{}), flow)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProperties)

	var pe *PropertyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "a", pe.NodeID)
}

func TestFaultInjectors(t *testing.T) {
	a := &domain.FlowNode{ID: "a"}
	b := &domain.FlowNode{ID: "b"}

	assert.NoError(t, NeverFail{}.Inject(a, 1))

	f := FailNodeIDs("b")
	assert.NoError(t, f.Inject(a, 1))
	assert.ErrorIs(t, f.Inject(b, 1), ErrInjectedFault)

	custom := errors.New("disk full")
	assert.ErrorIs(t, FailNodes{"a": custom}.Inject(a, 1), custom)

	assert.NoError(t, NewProbability(0, 1).Inject(a, 1))
	assert.ErrorIs(t, NewProbability(1, 1).Inject(a, 1), ErrInjectedFault)

	// Одинаковый seed — одинаковая последовательность.
	p1, p2 := NewProbability(0.5, 7), NewProbability(0.5, 7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, p1.Inject(a, 1) == nil, p2.Inject(a, 1) == nil)
	}
}

func TestManualTrigger(t *testing.T) {
	k := NewManualTrigger()

	res, err := k.Execute(context.Background(), newRequest(t, k, nil, engine.NewContext(map[string]any{"user": "ann"})))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "ann"}, res.Output)
	assert.Equal(t, "Trigger data passed to next node", res.Message)

	res, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"initialData": `{"x": 1}`}, nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(1)}, res.Output)
}

func TestScheduleTrigger(t *testing.T) {
	k := NewScheduleTrigger()

	res, err := k.Execute(context.Background(), newRequest(t, k, map[string]any{"schedule": "*/5 * * * *"}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.True(t, out["nextRun"].(time.Time).After(time.Now().Add(-time.Second)))

	_, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"schedule": "bogus"}, nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHTTPRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method": r.Method,
			"token":  r.Header.Get("Authorization"),
			"echo":   body["name"],
		})
	}))
	defer server.Close()

	k := NewHTTPRequest(server.Client())
	tc := engine.NewContext(map[string]any{"token": "secret", "name": "flow"})

	req := newRequest(t, k, map[string]any{
		"method":  "post",
		"url":     server.URL + "/data",
		"headers": map[string]any{"Authorization": "Bearer {{ .Trigger.token }}"},
		"body":    map[string]any{"name": "{{ .Trigger.name }}"},
	}, tc)
	assert.Equal(t, "Making HTTP request to "+server.URL+"/data", k.StartMessage(req))

	res, err := k.Execute(context.Background(), req)
	require.NoError(t, err)

	out := res.Output.(map[string]any)
	assert.Equal(t, 200, out["statusCode"])
	assert.Equal(t, map[string]any{"method": "POST", "token": "Bearer secret", "echo": "flow"}, out["body"])
	assert.Equal(t, "HTTP request completed successfully", res.Message)

	_, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"url": server.URL + "/fail"}, nil))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)

	_, err = k.Execute(context.Background(), newRequest(t, k, nil, nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestJSONTransform(t *testing.T) {
	k := NewJSONTransform()
	input := map[string]any{"items": []any{"a", "b", "c"}}

	res, err := k.Execute(context.Background(), newRequest(t, k,
		map[string]any{"expression": `{"total": {{ len .Input.items }}, "first": {{ json (index .Input.items 0) }}}`},
		nil, input))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total": float64(3), "first": "a"}, res.Output)

	_, err = k.Execute(context.Background(), newRequest(t, k, nil, nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCodeNode(t *testing.T) {
	k := NewCodeNode(nil)
	input := []any{map[string]any{"n": 1}, map[string]any{"n": 2}}

	res, err := k.Execute(context.Background(), newRequest(t, k, map[string]any{
		"code": `console.log("items", items.length); return items.map(i => i.n * 10);`,
	}, nil, input))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(20)}, res.Output)

	res, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"code": `var x = 1;`}, nil, input))
	require.NoError(t, err)
	assert.Equal(t, input, res.Output)

	_, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"code": `throw new Error("boom")`}, nil))
	assert.ErrorIs(t, err, ErrScript)
}

func TestCodeNode_Cancelled(t *testing.T) {
	k := NewCodeNode(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := k.Execute(ctx, newRequest(t, k, map[string]any{"code": `while (true) {}`}, nil))
	assert.ErrorIs(t, err, ErrNodeCancelled)
}

func TestIfNode(t *testing.T) {
	k := NewIfNode()

	res, err := k.Execute(context.Background(), newRequest(t, k,
		map[string]any{"condition": "input.status === 200"}, nil, map[string]any{"status": 200}))
	require.NoError(t, err)
	assert.Equal(t, "Condition evaluated: TRUE", res.Message)
	assert.Equal(t, "true", res.Output.(map[string]any)["branch"])

	res, err = k.Execute(context.Background(), newRequest(t, k,
		map[string]any{"condition": "input.status > 300"}, nil, map[string]any{"status": 200}))
	require.NoError(t, err)
	assert.Equal(t, "Condition evaluated: FALSE", res.Message)
}

func TestSwitchNode(t *testing.T) {
	k := NewSwitchNode()
	props := map[string]any{
		"field": "order.status",
		"cases": `[{"value": "paid", "output": "fulfil"}, {"value": "new", "output": "remind"}]`,
	}

	res, err := k.Execute(context.Background(), newRequest(t, k, props, nil,
		map[string]any{"order": map[string]any{"status": "new"}}))
	require.NoError(t, err)
	assert.Equal(t, "remind", res.Output.(map[string]any)["route"])

	res, err = k.Execute(context.Background(), newRequest(t, k, props, nil,
		map[string]any{"order": map[string]any{"status": "void"}}))
	require.NoError(t, err)
	assert.Equal(t, "default", res.Output.(map[string]any)["route"])
}

func TestMergeNode(t *testing.T) {
	k := NewMergeNode()
	left := []any{map[string]any{"id": 1, "a": "x"}, map[string]any{"id": 2, "a": "y"}}
	right := []any{map[string]any{"id": 2, "b": "z"}}

	res, err := k.Execute(context.Background(), newRequest(t, k, nil, nil, left, right))
	require.NoError(t, err)
	assert.Len(t, res.Output, 3)

	res, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"mode": "index"}, nil, left, right))
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"id": 2, "a": "x", "b": "z"},
		map[string]any{"id": 2, "a": "y"},
	}, res.Output)

	res, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"mode": "key", "key": "id"}, nil, left, right))
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"id": 1, "a": "x"},
		map[string]any{"id": 2, "a": "y", "b": "z"},
	}, res.Output)
}

// fakeCompleter — Completer с фиксированным ответом.
type fakeCompleter struct {
	got openai.ChatCompletionRequest
	err error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "hi there"},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}, nil
}

func TestAICompletion(t *testing.T) {
	fake := &fakeCompleter{}
	k := NewAICompletion(fake)

	res, err := k.Execute(context.Background(), newRequest(t, k, map[string]any{
		"prompt":       "Say hi to {{ .Trigger.name }}",
		"systemPrompt": "Be brief",
	}, engine.NewContext(map[string]any{"name": "Ann"})))
	require.NoError(t, err)

	assert.Equal(t, "hi there", res.Output.(map[string]any)["text"])
	require.Len(t, fake.got.Messages, 2)
	assert.Equal(t, "Say hi to Ann", fake.got.Messages[1].Content)
	assert.Equal(t, "gpt-4", fake.got.Model)

	_, err = NewAICompletion(nil).Execute(context.Background(), newRequest(t, k, map[string]any{"prompt": "x"}, nil))
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, NewOpenAIClient("", ""))
}

func TestTelegramNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "42", body["chat_id"])
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 7}}`))
	}))
	defer server.Close()

	k := NewTelegramNode(server.Client(), server.URL)

	res, err := k.Execute(context.Background(), newRequest(t, k,
		map[string]any{"chatId": "42", "message": "hello", "botToken": "TOKEN"}, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Output.(map[string]any)["messageId"])

	res, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"chatId": "42", "message": "hello"}, nil))
	require.NoError(t, err)
	assert.Equal(t, true, res.Output.(map[string]any)["simulated"])
}

func TestEmailNode(t *testing.T) {
	k := NewEmailNode()

	res, err := k.Execute(context.Background(), newRequest(t, k, map[string]any{"to": "a@b.c", "subject": "Hi"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "Email sent successfully", res.Message)

	_, err = k.Execute(context.Background(), newRequest(t, k, map[string]any{"to": "nobody", "subject": "Hi"}, nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSimulated(t *testing.T) {
	r := DemoRegistry(SimulationConfig{MinDelay: time.Millisecond, MaxDelay: 3 * time.Millisecond, Seed: 1})

	k, err := r.Get(KindHTTPRequest)
	require.NoError(t, err)

	req := newRequest(t, k, map[string]any{"url": "https://example.com"}, nil)
	assert.Equal(t, "Making HTTP request to https://example.com", k.StartMessage(req))

	res, err := k.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "HTTP request completed successfully", res.Message)
	delay := res.Data["delayMs"].(int64)
	assert.GreaterOrEqual(t, delay, int64(1))
	assert.LessOrEqual(t, delay, int64(3))

	custom := NewSimulated(&domain.NodeDefinition{ID: "custom"}, SimulationConfig{})
	res, err = custom.Execute(context.Background(), newRequest(t, custom, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "Node One completed", res.Message)
	assert.Equal(t, "Executing Node One", custom.StartMessage(newRequest(t, custom, nil, nil)))
}

func TestSimulated_Cancelled(t *testing.T) {
	k := NewSimulated(&domain.NodeDefinition{ID: "slow"}, SimulationConfig{MinDelay: time.Hour, MaxDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := k.Execute(ctx, newRequest(t, k, nil, nil))
	assert.ErrorIs(t, err, context.Canceled)
}
