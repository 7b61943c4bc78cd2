package bus

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPBus is a Transport backed by an AMQP 0-9-1 broker. Queues are declared
// durable on first use, messages are published persistent with a JSON content
// type, and consumers use manual acknowledgement so the broker redelivers
// anything that was not acked.
type AMQPBus struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  zerolog.Logger

	mu       sync.Mutex
	declared map[string]bool
}

// DialAMQP connects to the broker at url and opens a publishing channel.
func DialAMQP(url string, log zerolog.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &AMQPBus{
		conn:     conn,
		ch:       ch,
		log:      log,
		declared: make(map[string]bool),
	}, nil
}

// Close tears down the channel and the connection.
func (b *AMQPBus) Close() error {
	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}

func (b *AMQPBus) ensureQueue(ch *amqp.Channel, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.declared[queue] {
		return nil
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}
	b.declared[queue] = true
	return nil
}

// Publish sends body to the named durable queue via the default exchange.
func (b *AMQPBus) Publish(ctx context.Context, queue string, body []byte) error {
	if err := b.ensureQueue(b.ch, queue); err != nil {
		return err
	}
	err := b.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", queue, err)
	}
	return nil
}

// Subscribe opens a dedicated consumer channel on the named queue. Deliveries
// require explicit Ack/Nack. The returned channel closes when ctx is canceled
// or the broker drops the consumer.
func (b *AMQPBus) Subscribe(ctx context.Context, queue string) (<-chan Delivery, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp consumer channel: %w", err)
	}
	if err := b.ensureQueue(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	// Fair dispatch: no more than one unacked message per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	src, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume %q: %w", queue, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-src:
				if !ok {
					b.log.Warn().Str("queue", queue).Msg("amqp consumer channel closed")
					return
				}
				select {
				case <-ctx.Done():
					// Unacked; the broker will redeliver.
					return
				case out <- &amqpDelivery{d: d}:
				}
			}
		}
	}()
	return out, nil
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (a *amqpDelivery) Body() []byte { return a.d.Body }

func (a *amqpDelivery) Ack() error { return a.d.Ack(false) }

func (a *amqpDelivery) Nack(requeue bool) error { return a.d.Nack(false, requeue) }
