package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext(nil)
	assert.NotNil(t, ctx.Trigger)
	assert.NotNil(t, ctx.Nodes)

	ctx = NewContext(map[string]any{"key": "value"})
	assert.Equal(t, "value", ctx.Trigger["key"])
}

func TestContext_ForNode(t *testing.T) {
	ctx := NewContext(map[string]any{"source": "webhook"})
	ctx.AddNodeResult("a", map[string]any{"n": 1}, "success")
	ctx.AddNodeResult("b", map[string]any{"n": 2}, "success")

	t.Run("trigger gets trigger data", func(t *testing.T) {
		assert.Equal(t, ctx.Trigger, ctx.ForNode(nil).Input)
	})

	t.Run("single predecessor", func(t *testing.T) {
		assert.Equal(t, map[string]any{"n": 1}, ctx.ForNode([]string{"a"}).Input)
	})

	t.Run("merge of predecessors", func(t *testing.T) {
		in := ctx.ForNode([]string{"a", "b"}).Input
		assert.Equal(t, map[string]any{
			"a": map[string]any{"n": 1},
			"b": map[string]any{"n": 2},
		}, in)
	})

	assert.Nil(t, ctx.Input, "ForNode must not mutate the shared context")
}

func TestRender(t *testing.T) {
	ctx := NewContext(map[string]any{
		"name":  "test",
		"count": 42,
		"list":  []string{"a", "b", "c"},
		"user":  map[string]any{"address": map[string]any{"city": "Riga"}},
	})
	ctx.AddNodeResult("fetch", map[string]any{
		"data": map[string]any{"count": 3},
	}, "success")

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain text", "Plain text", "Plain text"},
		{"trigger field", "Hello, {{ .Trigger.name }}!", "Hello, test!"},
		{"number", "Count: {{ .Trigger.count }}", "Count: 42"},
		{"node status", "{{ .Nodes.fetch.Status }}", "success"},
		{"node output", "{{ .Nodes.fetch.Output.data.count }}", "3"},
		{"lower", `{{ lower "Hello" }}`, "hello"},
		{"default with nil", `{{ default "fallback" .Trigger.missing }}`, "fallback"},
		{"json", `{{ json .Trigger.list }}`, `["a","b","c"]`},
		{"get path", `{{ get .Trigger "user.address.city" }}`, "Riga"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{ .Invalid syntax", NewContext(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateParse)
}

func TestRenderConfig(t *testing.T) {
	ctx := NewContext(map[string]any{
		"api_url": "https://api.example.com",
		"token":   "secret123",
	})

	config := map[string]any{
		"method": "GET",
		"url":    "{{ .Trigger.api_url }}/users",
		"headers": map[string]any{
			"Authorization": "Bearer {{ .Trigger.token }}",
		},
		"tags":    []any{"{{ .Trigger.token }}", 7},
		"retries": 3,
	}

	result, err := RenderConfig(config, ctx)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/users", result["url"])
	assert.Equal(t, map[string]any{"Authorization": "Bearer secret123"}, result["headers"])
	assert.Equal(t, []any{"secret123", 7}, result["tags"])
	assert.Equal(t, 3, result["retries"])

	empty, err := RenderConfig(nil, ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRenderCondition(t *testing.T) {
	ctx := NewContext(map[string]any{"enabled": true, "count": 5})

	tests := []struct {
		condition string
		expected  bool
	}{
		{"", true},
		{".Trigger.enabled", true},
		{"gt .Trigger.count 3", true},
		{"gt .Trigger.count 10", false},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			ok, err := RenderCondition(tt.condition, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestRenderValue_ErrorNamesKey(t *testing.T) {
	_, err := RenderValue(map[string]any{"body": []any{"ok", "{{ .Broken"}}, NewContext(nil))
	require.ErrorIs(t, err, ErrTemplateParse)
	assert.Contains(t, err.Error(), "body: [1]:")
}

func TestRender_ReusesParsedTemplate(t *testing.T) {
	const src = "{{ .RunID }}-{{ upper .FlowID }}"
	a, err := Render(src, &Context{RunID: "r1", FlowID: "f"})
	require.NoError(t, err)
	b, err := Render(src, &Context{RunID: "r2", FlowID: "g"})
	require.NoError(t, err)

	assert.Equal(t, "r1-F", a)
	assert.Equal(t, "r2-G", b)
}
