// Package rabbitmq publishes domain events to a durable topic exchange with
// publisher confirms.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

const exchangeKind = "topic"

// ErrNotAcked is returned when the broker negatively acknowledges a message.
var ErrNotAcked = errors.New("broker did not acknowledge message")

// Message is one event leaving the service.
type Message struct {
	RoutingKey string
	MessageID  string
	Type       string
	Body       []byte
	Headers    map[string]any
	Timestamp  time.Time
}

type channel interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (bool, error)
	Close() error
}

type connection interface {
	IsClosed() bool
	Close() error
}

// Publisher owns one AMQP connection and a confirm-mode channel.
type Publisher struct {
	conn     connection
	ch       channel
	exchange string
	logg     *logger.Logger
}

// New dials the broker, declares the exchange and enables publisher confirms.
func New(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if strings.TrimSpace(cfg.Exchange) == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("open channel: %w", err), conn.Close())
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		exchangeKind,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, multierr.Combine(fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err), ch.Close(), conn.Close())
	}
	if err := ch.Confirm(false); err != nil {
		return nil, multierr.Combine(fmt.Errorf("enable confirms: %w", err), ch.Close(), conn.Close())
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "exchange", cfg.Exchange), "rabbitmq connection established")
	}
	return &Publisher{conn: conn, ch: &amqpChannel{ch: ch}, exchange: cfg.Exchange, logg: logg}, nil
}

// Publish sends msg and waits for the broker confirm.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if p == nil || p.ch == nil {
		return errors.New("rabbitmq publisher not initialized")
	}
	if strings.TrimSpace(msg.RoutingKey) == "" {
		return errors.New("routing key is required")
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	acked, err := p.ch.publish(ctx, p.exchange, msg.RoutingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Type:         msg.Type,
		Timestamp:    ts,
		Headers:      headers,
		Body:         msg.Body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.RoutingKey, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: %w", msg.RoutingKey, ErrNotAcked)
	}
	return nil
}

// Ping reports whether the connection is still open.
func (p *Publisher) Ping(context.Context) error {
	if p == nil || p.conn == nil {
		return errors.New("rabbitmq publisher not initialized")
	}
	if p.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

// Close releases the channel and the connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var err error
	if p.ch != nil {
		err = multierr.Append(err, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		err = multierr.Append(err, p.conn.Close())
	}
	return err
}

type amqpChannel struct {
	ch *amqp.Channel
}

func (a *amqpChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (bool, error) {
	confirm, err := a.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return false, err
	}
	if confirm == nil {
		return true, nil
	}
	return confirm.WaitContext(ctx)
}

func (a *amqpChannel) Close() error {
	return a.ch.Close()
}
