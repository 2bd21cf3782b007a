package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mhkaycey/wallet-service/internal/core/ports"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// amqpChannel is the slice of amqp091.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher implements ports.EventPublisher over a durable topic exchange.
// Settlement events are advisory; the ledger never depends on a publish
// succeeding.
type Publisher struct {
	conn       *amqp091.Connection
	newChannel func() (amqpChannel, error)
	exchange   string
	log        zerolog.Logger

	// mu serializes publishes and guards channel replacement. Settlements
	// publish from concurrent request goroutines.
	mu      sync.Mutex
	channel amqpChannel
}

// NewPublisher connects to RabbitMQ and declares the exchange.
func NewPublisher(amqpURL, exchange string, log zerolog.Logger) (*Publisher, error) {
	// Bounded dial timeout so startup does not hang on a dead broker
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("RabbitMQ publisher connected")

	return &Publisher{
		conn:       conn,
		newChannel: func() (amqpChannel, error) { return conn.Channel() },
		channel:    ch,
		exchange:   exchange,
		log:        log.With().Str("component", "rabbitmq").Logger(),
	}, nil
}

// PublishTransactionSettled emits a settlement event. Routing key is
// transaction.settled.<type>, lowercased.
func (p *Publisher) PublishTransactionSettled(ctx context.Context, event ports.TransactionSettledEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal settled event: %w", err)
	}

	routingKey := settledRoutingKey(event.Type)
	msg := amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err != nil {
		p.log.Warn().Err(err).Str("routing_key", routingKey).Msg("publish failed; reopening channel")
		// One-shot retry on a fresh channel
		ch, chErr := p.newChannel()
		if chErr != nil {
			return fmt.Errorf("publish settled event: %w", err)
		}
		p.channel.Close()
		p.channel = ch
		if err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
			return fmt.Errorf("publish settled event: %w", err)
		}
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.channel != nil {
		p.channel.Close()
	}
	p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
	}
}

func settledRoutingKey(txType string) string {
	return "transaction.settled." + strings.ToLower(txType)
}

// NoopPublisher is the fallback when RabbitMQ is unavailable at startup.
// Events are logged and dropped.
type NoopPublisher struct {
	log zerolog.Logger
}

// NewNoopPublisher creates a publisher that drops all events.
func NewNoopPublisher(log zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: log.With().Str("component", "rabbitmq").Logger()}
}

// PublishTransactionSettled logs the event and returns nil.
func (p *NoopPublisher) PublishTransactionSettled(ctx context.Context, event ports.TransactionSettledEvent) error {
	p.log.Warn().
		Str("reference", event.Reference).
		Str("status", event.Status).
		Msg("event publish skipped, broker unavailable")
	return nil
}
