package rabbitmq

import (
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body. Returning false re-queues the message.
type Handler func(body []byte) bool

// Consumer reads one durable queue bound to a topic exchange.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	prefetch int
	wg       sync.WaitGroup
}

// NewConsumer dials RabbitMQ. At most prefetch unacknowledged deliveries are
// held at a time.
func NewConsumer(amqpURL string) (*Consumer, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, prefetch: 16}, nil
}

// ConsumeWithBindings declares queueName, binds it to exchange for every routing
// key in bindings and dispatches deliveries in a background goroutine.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]Handler) error {
	handlers := make(map[string]Handler, len(bindings))
	for routingKey, handler := range bindings {
		if handler != nil {
			handlers[routingKey] = handler
		}
	}
	if len(handlers) == 0 {
		return errors.New("no bindings provided")
	}

	if err := declareExchange(c.ch, exchange); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	for routingKey := range handlers {
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", q.Name, routingKey, err)
		}
	}

	msgs, err := c.ch.Consume(q.Name, appID+"."+q.Name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}
	log.Printf("level=info component=rabbitmq_consumer msg=\"consuming\" queue=%s bindings=%d", q.Name, len(handlers))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for d := range msgs {
			dispatch(handlers, d.RoutingKey, d.Body, d)
		}
	}()
	return nil
}

// acknowledger is the subset of amqp.Delivery used by dispatch.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// dispatch routes one delivery. Unroutable messages are acked so they do not
// loop; a handler that panics has its message dropped.
func dispatch(handlers map[string]Handler, routingKey string, body []byte, d acknowledger) {
	handler, ok := handlers[routingKey]
	if !ok {
		log.Printf("level=warn component=rabbitmq_consumer msg=\"no handler; dropping\" routing_key=%s", routingKey)
		d.Ack(false)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("level=error component=rabbitmq_consumer msg=\"handler panicked; dropping\" routing_key=%s panic=%v", routingKey, r)
			d.Nack(false, false)
		}
	}()

	if handler(body) {
		d.Ack(false)
		return
	}
	log.Printf("level=warn component=rabbitmq_consumer msg=\"handler failed; re-queuing\" routing_key=%s", routingKey)
	d.Nack(false, true)
}

// Close closes the channel, which ends the delivery stream, and waits for the
// dispatch goroutine before closing the connection.
func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	c.wg.Wait()
	if c.conn != nil {
		c.conn.Close()
	}
}
