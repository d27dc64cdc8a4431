package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/events"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunEvent     MessageType = "run.event"
)

// sendFunc отправляет готовое AMQP сообщение.
type sendFunc func(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg amqp.Publishing) error

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	send   sendFunc
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		send: func(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg amqp.Publishing) error {
			return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
				return ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, msg)
			})
		},
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedPayload — запрос на запуск flow по событию.
type RunRequestedPayload struct {
	FlowID string         `json:"flowId"`
	Data   map[string]any `json:"data,omitempty"`

	// Source — кто запросил запуск (для логов).
	Source string `json:"source,omitempty"`

	// Trigger — тип запуска для run (default: event).
	Trigger domain.TriggerType `json:"trigger,omitempty"`
}

// NewMessage создаёт сообщение с новым ID и текущим временем.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.send(ctx, exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Type:         string(msg.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishRunRequested публикует запрос на запуск flow.
// Потребитель: RunRequestHandler.
func (p *Publisher) PublishRunRequested(ctx context.Context, payload RunRequestedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, NewMessage(MessageTypeRunRequested, payload))
}

// EventRoutingKey возвращает routing key события run: "run.<kind>".
func EventRoutingKey(e events.Event) RoutingKey {
	return RoutingKey("run." + string(e.Kind()))
}

// PublishEvent публикует событие run в flowforge.events.
// Payload — events.Envelope.
func (p *Publisher) PublishEvent(ctx context.Context, e events.Event) error {
	env, err := events.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.Publish(ctx, ExchangeEvents, EventRoutingKey(e), NewMessage(MessageTypeRunEvent, json.RawMessage(env)))
}

// ForwardEvents публикует события из канала, пока ctx не отменён
// или канал не закрыт. Ошибки публикации логируются и не прерывают цикл.
//
// Канал обычно получают из events.Broadcaster.Subscribe.
func (p *Publisher) ForwardEvents(ctx context.Context, in <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			if err := p.PublishEvent(ctx, e); err != nil {
				p.logger.Warn("failed to forward run event",
					"run_id", e.Run(),
					"type", e.Kind(),
					"error", err,
				)
			}
		}
	}
}
