package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// ErrPermanent — ошибка обработки, которую повтор не исправит.
// Такое сообщение уходит в DLQ, а не обратно в очередь.
var ErrPermanent = errors.New("permanent failure")

var errDeliveriesClosed = errors.New("deliveries channel closed")

// Permanent помечает ошибку как ErrPermanent.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Handler обрабатывает одно сообщение.
// Ошибка означает nack: с ErrPermanent — в DLQ, иначе обратно в очередь
// (но повторная доставка, упавшая снова, уходит в DLQ).
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — распарсенное сообщение и исходная AMQP доставка.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Consumer читает очередь и вызывает Handler.
// До Prefetch сообщений обрабатываются одновременно.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди (default: runs.requested).
	Queue string

	Handler Handler

	// Prefetch — лимит неподтверждённых сообщений и параллельных
	// обработчиков (default: 1).
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Queue == "" {
		cfg.Queue = string(QueueRunsRequested)
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
	}
}

// Start потребляет сообщения до отмены ctx, переживая переподключения.
// Возвращает ctx.Err() после того, как текущие обработчики завершатся.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err == nil {
			c.logger.Info("consumer started", "prefetch", c.prefetch)
			err = c.drain(ctx, deliveries)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Reconnected():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// ack вручную, consumer tag генерирует брокер
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// drain раздаёт доставки обработчикам, не больше prefetch одновременно.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var g errgroup.Group
	g.SetLimit(c.prefetch)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			g.Go(func() error {
				c.handleDelivery(ctx, raw)
				return nil
			})
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, dead-lettering", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}

	log := c.logger.With("message_id", msg.ID, "type", msg.Type)
	log.Debug("received message", "redelivered", raw.Redelivered)

	err := c.handler(ctx, &Delivery{Message: msg, Raw: raw})
	if err == nil {
		_ = raw.Ack(false)
		return
	}

	requeue := shouldRequeue(err, raw.Redelivered)
	log.Error("handler failed", "requeue", requeue, "error", err)
	_ = raw.Nack(false, requeue)
}

// shouldRequeue: временная ошибка возвращается в очередь один раз.
func shouldRequeue(err error, redelivered bool) bool {
	return !errors.Is(err, ErrPermanent) && !redelivered
}

// ParsePayload декодирует Message.Payload в T.
// Payload после json.Unmarshal — это map, поэтому он перекодируется.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	b, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
