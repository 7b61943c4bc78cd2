package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fwt/identity-core/internal/domain"
	"github.com/fwt/identity-core/internal/events"
	"github.com/fwt/identity-core/internal/repo"
)

// fakeDelivery records how the consumer settled it.
type fakeDelivery struct {
	mu      sync.Mutex
	body    []byte
	acked   int
	nacked  int
	requeue bool
}

func (d *fakeDelivery) Body() []byte { return d.body }

func (d *fakeDelivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acked++
	return nil
}

func (d *fakeDelivery) Nack(requeue bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nacked++
	d.requeue = requeue
	return nil
}

func mustEncode(t *testing.T, e events.Event) []byte {
	t.Helper()
	body, err := events.Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return body
}

func TestConsumer_AppliesAndAcks(t *testing.T) {
	m, db, mb := newMachine(t)
	c := NewConsumer(mb, m, events.NameMessagesFetched, 2, time.Millisecond, zerolog.Nop())
	job := mustCreateJob(t, db, 5)

	d := &fakeDelivery{body: mustEncode(t, events.MessagesFetched{JobID: job.ID})}
	c.process(context.Background(), d)

	if d.acked != 1 || d.nacked != 0 {
		t.Fatalf("settle = ack %d nack %d; want single ack", d.acked, d.nacked)
	}
	stored, _ := repo.GetJob(context.Background(), db, job.ID)
	if stored.Status != domain.JobStatusProcessing {
		t.Fatalf("Status = %s; want processing", stored.Status)
	}
}

func TestConsumer_MalformedPayloadDeadLetters(t *testing.T) {
	m, _, mb := newMachine(t)
	c := NewConsumer(mb, m, events.NameMessagesFetched, 2, time.Millisecond, zerolog.Nop())

	d := &fakeDelivery{body: []byte("not json")}
	c.process(context.Background(), d)

	if d.acked != 1 {
		t.Fatalf("acked = %d; want 1 after dead-letter", d.acked)
	}
	if got := mb.Depth(events.NameMessagesFetched + deadLetterSuffix); got != 1 {
		t.Fatalf("dead-letter depth = %d; want 1", got)
	}
}

func TestConsumer_UnresolvableJobDeadLettersWithReason(t *testing.T) {
	m, _, mb := newMachine(t)
	c := NewConsumer(mb, m, events.NameMessagesFetched, 2, time.Millisecond, zerolog.Nop())

	original := mustEncode(t, events.MessagesFetched{JobID: "missing"})
	d := &fakeDelivery{body: original}
	c.process(context.Background(), d)

	if d.acked != 1 {
		t.Fatalf("acked = %d; want 1 after dead-letter", d.acked)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deliveries, err := mb.Subscribe(ctx, events.NameMessagesFetched+deadLetterSuffix)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case dl := <-deliveries:
		var parked deadLetter
		if err := json.Unmarshal(dl.Body(), &parked); err != nil {
			t.Fatalf("dead letter not JSON: %v", err)
		}
		if parked.Reason == "" {
			t.Fatalf("dead letter carries no reason")
		}
		if string(parked.Envelope) != string(original) {
			t.Fatalf("dead letter envelope differs from original payload")
		}
	case <-time.After(time.Second):
		t.Fatalf("nothing on dead-letter queue")
	}
}

func TestConsumer_RetriesExhaustedDeadLetters(t *testing.T) {
	m, db, mb := newMachine(t)
	c := NewConsumer(mb, m, events.NameMessagesFetched, 2, time.Millisecond, zerolog.Nop())
	job := mustCreateJob(t, db, 5)

	// Poison the apply path with a conflict on every attempt: a competing
	// writer bumps the version each time before our stale copy commits.
	// Simplest deterministic stand-in: drop the jobs table so every write
	// fails as a transient DB error.
	if err := db.Migrator().DropTable(&domain.Job{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	d := &fakeDelivery{body: mustEncode(t, events.MessagesFetched{JobID: job.ID})}
	c.process(context.Background(), d)

	if d.acked != 1 {
		t.Fatalf("acked = %d; want 1 after exhausting retries", d.acked)
	}
	if got := mb.Depth(events.NameMessagesFetched + deadLetterSuffix); got != 1 {
		t.Fatalf("dead-letter depth = %d; want 1", got)
	}
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	m, _, mb := newMachine(t)
	c := NewConsumer(mb, m, events.NameMessagesFetched, 2, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run = %v; want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop within 1s of cancel")
	}
}

func TestConsumer_EndToEndOverBus(t *testing.T) {
	m, db, mb := newMachine(t)
	c := NewConsumer(mb, m, events.NameMessagesFetched, 2, time.Millisecond, zerolog.Nop())
	job := mustCreateJob(t, db, 5)

	if err := mb.Publish(context.Background(), events.NameMessagesFetched,
		mustEncode(t, events.MessagesFetched{JobID: job.ID})); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := repo.GetJob(context.Background(), db, job.ID)
		if err == nil && stored.Status == domain.JobStatusProcessing {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("job never advanced; status err=%v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if got := mb.Depth(events.NameJobStatusChanged); got != 1 {
		t.Fatalf("follow-on events = %d; want 1", got)
	}
}
