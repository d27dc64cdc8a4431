package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// DefaultTelegramAPI — базовый URL Telegram Bot API.
const DefaultTelegramAPI = "https://api.telegram.org"

// EmailNode — отправка email.
//
// Доставка симулируется: узел проверяет адрес и возвращает
// сгенерированный messageId.
type EmailNode struct{ base }

// NewEmailNode создаёт новый EmailNode.
func NewEmailNode() *EmailNode {
	return &EmailNode{newBase(KindEmail)}
}

// Execute "отправляет" письмо.
func (k *EmailNode) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	to := GetString(req.Properties, "to")
	subject := GetString(req.Properties, "subject")
	if to == "" || subject == "" {
		return nil, fmt.Errorf("%w: %s: to and subject are required", ErrInvalidConfig, KindEmail)
	}
	for _, addr := range strings.Split(to, ",") {
		if !strings.Contains(strings.TrimSpace(addr), "@") {
			return nil, fmt.Errorf("%w: %s: invalid address %q", ErrInvalidConfig, KindEmail, addr)
		}
	}

	messageID := uuid.NewString()
	return &Result{
		Output: map[string]any{
			"messageId": messageID,
			"to":        to,
			"subject":   subject,
			"simulated": true,
		},
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"to": to, "subject": subject, "messageId": messageID},
	}, nil
}

// TelegramNode — отправка сообщения через Telegram Bot API.
//
// Без botToken доставка симулируется.
type TelegramNode struct {
	base
	client  *http.Client
	baseURL string
}

// NewTelegramNode создаёт новый TelegramNode.
func NewTelegramNode(client *http.Client, baseURL string) *TelegramNode {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	return &TelegramNode{
		base:    newBase(KindTelegram),
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// telegramResponse — ответ sendMessage.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Execute отправляет сообщение.
func (k *TelegramNode) Execute(ctx context.Context, req *Request) (*Result, error) {
	chatID := GetString(req.Properties, "chatId")
	text := GetString(req.Properties, "message")
	if chatID == "" || text == "" {
		return nil, fmt.Errorf("%w: %s: chatId and message are required", ErrInvalidConfig, KindTelegram)
	}

	token := GetString(req.Properties, "botToken")
	if token == "" {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		return &Result{
			Output:  map[string]any{"chatId": chatID, "simulated": true},
			Message: k.CompleteMessage(req),
			Data:    map[string]any{"chatId": chatID},
		}, nil
	}

	payload := map[string]any{"chat_id": chatID, "text": text}
	if mode := GetString(req.Properties, "parseMode"); mode != "" {
		payload["parse_mode"] = mode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", k.baseURL, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode telegram response: %w", err)
	}
	if !tr.OK {
		return nil, fmt.Errorf("telegram: %s", tr.Description)
	}

	return &Result{
		Output:  map[string]any{"chatId": chatID, "messageId": tr.Result.MessageID},
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"chatId": chatID, "messageId": tr.Result.MessageID},
	}, nil
}
