package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chefos/chefos-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how many redeliveries a failing message gets before it is dead-lettered
const MaxRetries = 3

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer declares the service queue name, bound to the service exchange
// for each routing key, and returns a consumer reading from it
func NewConsumer(rmq *RabbitMQ, name string, log *logger.Logger, routingKeys ...string) (*Consumer, error) {
	queue, err := rmq.DeclareQueue(name, routingKeys...)
	if err != nil {
		return nil, err
	}

	c := newConsumer(rmq, queue, log)
	c.logger.Info().
		Str("queue", queue).
		Str("exchange", rmq.Topology().Exchange).
		Strs("routing_keys", routingKeys).
		Msg("queue bound")
	return c, nil
}

func newConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}
}

// Queue returns the full name of the consumed queue
func (c *Consumer) Queue() string {
	return c.queueName
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start starts consuming messages from the queue
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("message channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()

	return nil
}

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionRequeue
	actionReject
)

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	switch c.process(ctx, msg.Body, getRetryCount(msg)) {
	case actionAck:
		msg.Ack(false)
	case actionRequeue:
		msg.Nack(false, true)
	case actionReject:
		msg.Reject(false)
	}
}

// process decides what happens to a delivery
func (c *Consumer) process(ctx context.Context, body []byte, retryCount int) deliveryAction {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		// Reject without requeue for malformed messages
		return actionReject
	}

	// Add correlation ID to context
	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return actionAck
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	if err := handler(ctx, &event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")

		if retryCount >= MaxRetries {
			// Send to dead letter queue
			c.logger.Warn().
				Str("event_id", event.ID).
				Int("retry_count", retryCount).
				Msg("max retries exceeded, sending to DLQ")
			return actionReject
		}

		return actionRequeue
	}

	return actionAck
}

func getRetryCount(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}

	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
