package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chefos/chefos-backend/pkg/config"
	"github.com/chefos/chefos-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology is what one service owns on the broker: the topic exchange it
// publishes to and consumes from, and a dead letter exchange whose catch-all
// queue dlq.<Service> keeps deliveries that ran out of retries.
type Topology struct {
	Service            string
	Exchange           string
	DeadLetterExchange string
}

// InventoryTopology is the broker layout of the inventory service
func InventoryTopology() Topology {
	return Topology{
		Service:            "inventory-service",
		Exchange:           ExchangeInventoryEvents,
		DeadLetterExchange: ExchangeDeadLetter,
	}
}

// QueueName prefixes a queue with the owning service
func (t Topology) QueueName(name string) string {
	return t.Service + "." + name
}

// DeadLetterQueue names the queue collecting the service's dead letters
func (t Topology) DeadLetterQueue() string {
	return "dlq." + t.Service
}

// declarer is the part of *amqp.Channel that declares topology
type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// declare creates both exchanges and the dead letter queue. Declarations are
// idempotent, so every connection repeats them.
func (t Topology) declare(ch declarer) error {
	for _, exchange := range []string{t.Exchange, t.DeadLetterExchange} {
		if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}

	dlq := t.DeadLetterQueue()
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, "#", t.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", dlq, err)
	}
	return nil
}

// declareQueue creates a durable service queue that dead-letters into the
// service's DLX and binds it to the service exchange for each routing key
func (t Topology) declareQueue(ch declarer, name string, routingKeys []string) (string, error) {
	queue := t.QueueName(name)
	args := amqp.Table{"x-dead-letter-exchange": t.DeadLetterExchange}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return "", fmt.Errorf("declare queue %s: %w", queue, err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(queue, key, t.Exchange, false, nil); err != nil {
			return "", fmt.Errorf("bind queue %s to %s: %w", queue, key, err)
		}
	}
	return queue, nil
}

// RabbitMQ holds the service's broker connection and its topology
type RabbitMQ struct {
	cfg      *config.RabbitMQConfig
	topology Topology
	logger   *logger.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// Dial connects to the broker and declares the topology. The broker often
// starts after the service, so dialing is retried cfg.MaxRetries times.
func Dial(ctx context.Context, cfg *config.RabbitMQConfig, topology Topology, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{cfg: cfg, topology: topology, logger: log}

	conn, ch, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	r.conn, r.channel = conn, ch

	log.Info().
		Str("exchange", topology.Exchange).
		Str("dlq", topology.DeadLetterQueue()).
		Msg("connected to RabbitMQ")
	return r, nil
}

func (r *RabbitMQ) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	attempts := max(r.cfg.MaxRetries, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var (
			conn *amqp.Connection
			ch   *amqp.Channel
		)
		if conn, ch, err = r.open(); err == nil {
			return conn, ch, nil
		}

		r.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("RabbitMQ unavailable")
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}
	return nil, nil, fmt.Errorf("connect to RabbitMQ after %d attempts: %w", attempts, err)
}

func (r *RabbitMQ) open() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err == nil {
		err = ch.Qos(r.cfg.PrefetchCount, 0, false)
	}
	if err == nil {
		err = r.topology.declare(ch)
	}
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// Topology returns the layout declared on connect
func (r *RabbitMQ) Topology() Topology {
	return r.topology
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// DeclareQueue declares a service queue bound to the service exchange and
// returns its full name
func (r *RabbitMQ) DeclareQueue(name string, routingKeys ...string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topology.declareQueue(r.channel, name, routingKeys)
}

// publish sends one message to the service exchange
func (r *RabbitMQ) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	ch := r.Channel()
	if ch == nil {
		return amqp.ErrClosed
	}
	return ch.PublishWithContext(ctx, r.topology.Exchange, routingKey, false, false, msg)
}

// Reconnect replaces a dropped connection. It is a no-op while the current
// channel is still open, so concurrent publishers reconnect once.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("RabbitMQ connection is permanently closed")
	}
	if r.channel != nil && !r.channel.IsClosed() {
		return nil
	}
	if r.conn != nil && !r.conn.IsClosed() {
		r.conn.Close()
	}

	conn, ch, err := r.connect(ctx)
	if err != nil {
		return err
	}
	r.conn, r.channel = conn, ch

	r.logger.Info().Msg("reconnected to RabbitMQ")
	return nil
}

// Close closes the connection for good
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.channel != nil {
		if err := r.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close RabbitMQ connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports the connection state. A nil RabbitMQ is disabled.
func (r *RabbitMQ) Health() map[string]string {
	if r == nil {
		return map[string]string{"status": "disabled"}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status":   "up",
		"exchange": r.topology.Exchange,
	}
	if r.conn == nil || r.conn.IsClosed() {
		status["status"] = "down"
		status["error"] = "connection closed"
	}
	return status
}
