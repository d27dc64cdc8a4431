package nodes

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Completer — клиент chat completion. Реализуется *openai.Client.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient создаёт клиент OpenAI-совместимого API.
// Пустой apiKey возвращает nil: узел ai-completion будет падать с ErrNotConfigured.
func NewOpenAIClient(apiKey, baseURL string) Completer {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// AICompletion — генерация текста языковой моделью.
//
// Output:
//
//	{
//	    "text": "...",
//	    "model": "gpt-4",
//	    "finishReason": "stop",
//	    "usage": {"promptTokens": 10, "completionTokens": 20, "totalTokens": 30}
//	}
type AICompletion struct {
	base
	client Completer
}

// NewAICompletion создаёт новый AICompletion.
func NewAICompletion(client Completer) *AICompletion {
	return &AICompletion{
		base:   newBase(KindAICompletion),
		client: client,
	}
}

// Execute отправляет prompt модели.
func (k *AICompletion) Execute(ctx context.Context, req *Request) (*Result, error) {
	if k.client == nil {
		return nil, fmt.Errorf("%w: %s: OPENAI_API_KEY is not set", ErrNotConfigured, KindAICompletion)
	}

	prompt := GetString(req.Properties, "prompt")
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: %s: prompt is required", ErrInvalidConfig, KindAICompletion)
	}

	model := GetString(req.Properties, "model")
	if model == "" {
		model = openai.GPT4
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if sys := GetString(req.Properties, "systemPrompt"); sys != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := k.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   GetInt(req.Properties, "maxTokens"),
		Temperature: float32(GetFloat(req.Properties, "temperature", 0.7)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("create chat completion: no choices returned")
	}

	choice := resp.Choices[0]
	usage := map[string]any{
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
		"totalTokens":      resp.Usage.TotalTokens,
	}

	return &Result{
		Output: map[string]any{
			"text":         choice.Message.Content,
			"model":        model,
			"finishReason": string(choice.FinishReason),
			"usage":        usage,
		},
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"model": model, "usage": usage},
	}, nil
}
