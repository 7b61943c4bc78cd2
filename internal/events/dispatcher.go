package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fwt/identity-core/internal/bus"
)

// Dispatcher publishes events to the transport in emission order, one queue
// per event name.
//
// Durability policy: commit-before-publish with an accepted gap. Callers must
// only invoke Dispatch after the state change an event describes has been
// durably persisted. A crash between commit and publish loses the event
// rather than duplicating state; the broker is at-least-once, so consumers
// must tolerate duplicates either way.
type Dispatcher struct {
	transport bus.Transport
	log       zerolog.Logger
}

// NewDispatcher returns a Dispatcher publishing via transport.
func NewDispatcher(transport bus.Transport, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{transport: transport, log: log}
}

// Dispatch encodes and publishes each event in order. It stops at the first
// failure and returns it; events already published stay published.
func (d *Dispatcher) Dispatch(ctx context.Context, evs ...Event) error {
	for _, e := range evs {
		body, err := Encode(e)
		if err != nil {
			return err
		}
		if err := d.transport.Publish(ctx, e.Name(), body); err != nil {
			d.log.Error().Err(err).Str("event", e.Name()).Msg("event publish failed")
			return fmt.Errorf("publish %s: %w", e.Name(), err)
		}
		d.log.Debug().Str("event", e.Name()).Msg("event published")
	}
	return nil
}
