// Package bus defines the message transport boundary used to publish and
// consume serialized events, together with two adapters: an AMQP-backed
// implementation for production and an in-process implementation for tests.
//
// Delivery is at-least-once: consumers must tolerate redelivery of any
// message. No ordering is guaranteed across queues.
package bus

import "context"

// Delivery is a single received message. Exactly one of Ack or Nack must be
// called once processing finishes; Nack with requeue=true makes the message
// eligible for redelivery.
type Delivery interface {
	// Body returns the raw message payload.
	Body() []byte

	// Ack marks the message as successfully processed.
	Ack() error

	// Nack rejects the message, optionally requeueing it for redelivery.
	Nack(requeue bool) error
}

// Transport publishes to and subscribes from named queues.
type Transport interface {
	// Publish sends body to the named queue. The queue is created if it does
	// not exist yet.
	Publish(ctx context.Context, queue string, body []byte) error

	// Subscribe returns a channel of deliveries from the named queue. The
	// channel is closed when ctx is canceled or the underlying connection
	// goes away. Multiple subscribers to the same queue compete for messages.
	Subscribe(ctx context.Context, queue string) (<-chan Delivery, error)
}
