// Package events defines the immutable facts exchanged between the request
// core and the queue consumers, the JSON envelope they travel in, and the
// dispatcher that publishes them to the transport.
//
// Events carry the identifiers a consumer needs to act (job id, user id)
// without re-querying state. Ordering is guaranteed only within a single
// originating handler invocation.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fwt/identity-core/internal/domain"
)

// ErrUnknownEvent is returned when decoding a payload whose event name has no
// registered type. Consumers treat this as a permanent, dead-letterable fault.
var ErrUnknownEvent = errors.New("unknown event name")

// Event is an immutable fact published after a state change. Name doubles as
// the transport destination for the event.
type Event interface {
	Name() string
}

// Event names. Each name is also the queue the event is published to.
const (
	NameMessagesFetched   = "telegram.messages.fetched"
	NameMessagesProcessed = "telegram.messages.processed"
	NameFetchFailed       = "telegram.fetch.failed"
	NameJobStatusChanged  = "telegram.job.status-changed"
)

// MessagesFetched signals that the upstream fetch for a job has delivered all
// messages and processing may begin.
type MessagesFetched struct {
	JobID string `json:"job_id"`
}

// Name implements Event.
func (MessagesFetched) Name() string { return NameMessagesFetched }

// MessagesProcessed signals that all fetched messages for a job have been
// processed and the job is complete.
type MessagesProcessed struct {
	JobID string `json:"job_id"`
}

// Name implements Event.
func (MessagesProcessed) Name() string { return NameMessagesProcessed }

// FetchFailed signals that the upstream fetch for a job failed permanently.
type FetchFailed struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

// Name implements Event.
func (FetchFailed) Name() string { return NameFetchFailed }

// JobStatusChanged is the follow-on fact emitted after a job transition is
// persisted. It carries the owner's user id so downstream consumers can act
// without loading the job.
type JobStatusChanged struct {
	JobID  string           `json:"job_id"`
	UserID int64            `json:"user_id"`
	Status domain.JobStatus `json:"status"`
}

// Name implements Event.
func (JobStatusChanged) Name() string { return NameJobStatusChanged }

// Envelope is the wire form of an event: a unique id for log correlation, the
// event name for routing and decoding, the emission timestamp, and the typed
// payload as raw JSON.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode wraps e in an Envelope and serializes it.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Name(), err)
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Name:       e.Name(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	return json.Marshal(env)
}

// Decode parses an Envelope and reconstructs the typed event it carries.
// An unregistered name yields ErrUnknownEvent.
func Decode(body []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	var (
		e   Event
		err error
	)
	switch env.Name {
	case NameMessagesFetched:
		var ev MessagesFetched
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	case NameMessagesProcessed:
		var ev MessagesProcessed
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	case NameFetchFailed:
		var ev FetchFailed
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	case NameJobStatusChanged:
		var ev JobStatusChanged
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Name, err)
	}
	return e, nil
}
