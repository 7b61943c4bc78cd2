package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fwt/identity-core/internal/bus"
	"github.com/fwt/identity-core/internal/events"
	"github.com/fwt/identity-core/internal/repo"
)

// deadLetterSuffix names the terminal queue for undeliverable messages.
const deadLetterSuffix = ".dead"

// deadLetter wraps an undeliverable payload with the reason it was parked.
type deadLetter struct {
	Reason   string          `json:"reason"`
	Envelope json.RawMessage `json:"envelope"`
}

// Consumer pulls event deliveries from one queue and feeds them to the state
// machine. Any number of Consumer instances may compete on the same queue;
// the state machine's idempotence carries the correctness burden under
// redelivery.
//
// Failure policy per delivery:
//   - permanent faults (malformed payload, unknown event, unresolvable job)
//     are dead-lettered to "<queue>.dead" and acked so the queue never blocks;
//   - transient faults (write conflicts, I/O) are retried in place with
//     exponential backoff up to MaxRetries, then dead-lettered.
type Consumer struct {
	Bus     bus.Transport
	Machine *StateMachine
	Queue   string
	Log     zerolog.Logger

	// MaxRetries bounds in-place retries of a delivery after its first
	// attempt. RetryBackoff is the initial delay, doubled per retry.
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewConsumer constructs a Consumer for the named queue.
func NewConsumer(transport bus.Transport, machine *StateMachine, queue string, maxRetries int, backoff time.Duration, log zerolog.Logger) *Consumer {
	return &Consumer{
		Bus:          transport,
		Machine:      machine,
		Queue:        queue,
		Log:          log,
		MaxRetries:   maxRetries,
		RetryBackoff: backoff,
	}
}

// Run consumes deliveries until ctx is canceled or the subscription closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.Bus.Subscribe(ctx, c.Queue)
	if err != nil {
		return err
	}
	c.Log.Info().Str("queue", c.Queue).Msg("consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				c.Log.Info().Str("queue", c.Queue).Msg("subscription closed, consumer stopping")
				return nil
			}
			c.process(ctx, d)
		}
	}
}

// process handles one delivery end to end. It always settles the delivery:
// ack on success or dead-letter, nack-requeue only when dead-lettering itself
// failed and the broker should redeliver.
func (c *Consumer) process(ctx context.Context, d bus.Delivery) {
	ev, err := events.Decode(d.Body())
	if err != nil {
		c.settle(ctx, d, "decode: "+err.Error())
		return
	}

	backoff := c.RetryBackoff
	for attempt := 0; ; attempt++ {
		err = c.Machine.Apply(ctx, ev)
		if err == nil {
			if aerr := d.Ack(); aerr != nil {
				c.Log.Warn().Err(aerr).Str("queue", c.Queue).Msg("ack failed")
			}
			return
		}
		if permanent(err) {
			c.settle(ctx, d, err.Error())
			return
		}
		if attempt >= c.MaxRetries || ctx.Err() != nil {
			c.settle(ctx, d, "retries exhausted: "+err.Error())
			return
		}
		consumerEvents.WithLabelValues(ev.Name(), "retried").Inc()
		c.Log.Warn().Err(err).
			Str("queue", c.Queue).
			Int("attempt", attempt+1).
			Msg("transient consume failure, retrying")
		select {
		case <-ctx.Done():
			c.settle(ctx, d, "canceled: "+err.Error())
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// settle parks the delivery on the dead-letter queue and acks it. If the
// dead-letter publish fails the delivery is nacked back for redelivery so
// the message is not lost.
func (c *Consumer) settle(ctx context.Context, d bus.Delivery, reason string) {
	body, err := json.Marshal(deadLetter{Reason: reason, Envelope: d.Body()})
	if err != nil {
		// Envelope bytes are already JSON; this cannot realistically fail.
		body = d.Body()
	}
	if err := c.Bus.Publish(ctx, c.Queue+deadLetterSuffix, body); err != nil {
		c.Log.Error().Err(err).Str("queue", c.Queue).Msg("dead-letter publish failed, requeueing")
		if nerr := d.Nack(true); nerr != nil {
			c.Log.Error().Err(nerr).Str("queue", c.Queue).Msg("nack failed")
		}
		return
	}
	consumerEvents.WithLabelValues(c.Queue, "dead_letter").Inc()
	c.Log.Error().Str("queue", c.Queue).Str("reason", reason).Msg("delivery dead-lettered")
	if aerr := d.Ack(); aerr != nil {
		c.Log.Warn().Err(aerr).Str("queue", c.Queue).Msg("ack failed after dead-letter")
	}
}

// permanent reports whether err can never succeed on retry.
func permanent(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, events.ErrUnknownEvent) ||
		errors.Is(err, repo.ErrNotFound)
}
