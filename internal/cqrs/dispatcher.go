package cqrs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fwt/identity-core/internal/events"
)

// Dispatcher routes each request to the single handler registered for its
// name. The registry is an explicit map built at composition time; there is
// no reflection and no runtime mutation, so a missing handler is always a
// wiring bug rather than a data-dependent failure.
//
// Execute runs synchronously on the caller's goroutine. Concurrent callers
// share nothing through the dispatcher itself.
type Dispatcher struct {
	handlers map[string]Handler
	log      zerolog.Logger
	tracer   trace.Tracer
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		log:      log,
		tracer:   otel.Tracer("cqrs"),
	}
}

// Register binds h as the sole handler for the given request name. A second
// registration for the same name fails with ErrDuplicateHandler; callers are
// expected to treat that as fatal at startup.
func (d *Dispatcher) Register(name string, h Handler) error {
	if _, ok := d.handlers[name]; ok {
		return ErrDuplicateHandler
	}
	d.handlers[name] = h
	return nil
}

// MustRegister is Register that panics on error, for composition roots where
// a duplicate registration is unrecoverable.
func (d *Dispatcher) MustRegister(name string, h Handler) {
	if err := d.Register(name, h); err != nil {
		panic(err)
	}
}

// Execute routes req to its handler and returns the handler's result and
// collected events. An unregistered request name yields *HandlerNotFoundError;
// a handler failure is wrapped in *HandlerExecutionError without losing the
// underlying cause. Execute has no side effects of its own.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (any, []events.Event, error) {
	name := req.Name()
	h, ok := d.handlers[name]
	if !ok {
		dispatchTotal.WithLabelValues(name, "not_found").Inc()
		return nil, nil, &HandlerNotFoundError{Request: name}
	}

	ctx, span := d.tracer.Start(ctx, "cqrs.execute "+name)
	defer span.End()

	start := time.Now()
	res, evs, err := h.Handle(ctx, req)
	dispatchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		dispatchTotal.WithLabelValues(name, "error").Inc()
		d.log.Error().Err(err).Str("request", name).Msg("request failed")
		return nil, nil, &HandlerExecutionError{Request: name, Err: err}
	}

	dispatchTotal.WithLabelValues(name, "ok").Inc()
	d.log.Debug().Str("request", name).Int("events", len(evs)).Msg("request handled")
	return res, evs, nil
}
