package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/chefos/chefos-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to the service exchange, routed by event type
type Publisher struct {
	rmq    *RabbitMQ
	source string
	logger *logger.Logger
}

// NewPublisher creates a publisher stamping events with source
func NewPublisher(rmq *RabbitMQ, source string, log *logger.Logger) *Publisher {
	return &Publisher{rmq: rmq, source: source, logger: log}
}

// Publish sends data as an event of eventType. The correlation ID set on ctx
// travels with it. A closed channel is reconnected and the send retried once.
// A nil Publisher (RabbitMQ disabled) drops the event.
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	if p == nil {
		return nil
	}

	event, err := NewEvent(eventType, p.source, CorrelationID(ctx), data)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	msg, err := event.Publishing()
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	err = p.rmq.publish(ctx, eventType, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.logger.Warn().Str("event_type", eventType).Msg("RabbitMQ channel closed, reconnecting")
		if err = p.rmq.Reconnect(ctx); err == nil {
			err = p.rmq.publish(ctx, eventType, msg)
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("event published")
	return nil
}

type correlationKey struct{}

// WithCorrelationID tags ctx so events published from it share the ID
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationID returns the ID set by WithCorrelationID, or ""
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
