/**
 * @description
 * Publishing side of the fund event bus. Events are JSON documents sent to a
 * durable topic exchange; the routing key doubles as the message type so
 * consumers can route without decoding the body.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - github.com/google/uuid: Message ids.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const appID = "fund-service"

// ErrMissingURL is returned when no broker URL is configured.
var ErrMissingURL = errors.New("rabbitmq url is not configured")

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// DroppingPublisher logs and discards every event. It stands in for the broker
// when none is reachable at startup.
type DroppingPublisher struct{}

func (DroppingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=dropping msg=\"event dropped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (DroppingPublisher) Close() {}

// EventProducer publishes persistent JSON events over a single channel.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	declared map[string]bool
	now      func() time.Time
}

// brokerURL trims quotes and whitespace that env files tend to leave around the
// value and checks the scheme.
func brokerURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if clean == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse rabbitmq url: %w", err)
	}
	switch u.Scheme {
	case "amqp", "amqps":
		return clean, nil
	}
	return "", fmt.Errorf("rabbitmq url scheme %q: expected amqp or amqps", u.Scheme)
}

func dial(raw string) (*amqp091.Connection, *amqp091.Channel, error) {
	clean, err := brokerURL(raw)
	if err != nil {
		return nil, nil, err
	}
	conn, err := amqp091.DialConfig(clean, amqp091.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp091.DefaultDial(10 * time.Second),
		Properties: amqp091.Table{
			"connection_name": appID,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// NewEventProducer dials RabbitMQ and opens a publishing channel.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}
	return &EventProducer{conn: conn, channel: ch, declared: make(map[string]bool), now: time.Now}, nil
}

// Publish sends body as JSON to exchange with routingKey. When the channel has
// been closed by the broker it is reopened once and the publish retried.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	msg, err := p.message(routingKey, body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, exchange, routingKey, msg)
	if err == nil {
		return nil
	}
	log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
	if reopenErr := p.reopenLocked(); reopenErr != nil {
		return fmt.Errorf("publish %s: %w", routingKey, errors.Join(err, reopenErr))
	}
	if err := p.publishLocked(ctx, exchange, routingKey, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *EventProducer) message(routingKey string, body interface{}) (amqp091.Publishing, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("encode %s event: %w", routingKey, err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Type:         routingKey,
		AppId:        appID,
		Timestamp:    p.now().UTC(),
		Body:         payload,
	}, nil
}

func (p *EventProducer) publishLocked(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) error {
	if !p.declared[exchange] {
		if err := declareExchange(p.channel, exchange); err != nil {
			return err
		}
		p.declared[exchange] = true
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

func (p *EventProducer) reopenLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		return amqp091.ErrClosed
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	p.channel = ch
	p.declared = make(map[string]bool)
	return nil
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	)
}

// Close closes the channel and the connection.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
