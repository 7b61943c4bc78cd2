package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fwt/identity-core/internal/domain"
	"github.com/fwt/identity-core/internal/events"
	"github.com/fwt/identity-core/internal/repo"
)

// StateMachine applies consumed events to persisted jobs as guarded status
// transitions. Application is idempotent: redelivering an event for a job
// already at or past the target status is a no-op and emits nothing, so any
// number of competing consumers can process the same queue safely.
type StateMachine struct {
	DB     *gorm.DB
	Events *events.Dispatcher
	Log    zerolog.Logger

	// Now is a test seam for status timestamps; defaults to time.Now.
	Now func() time.Time
}

// NewStateMachine constructs a StateMachine over db, emitting follow-on
// events through dispatcher.
func NewStateMachine(db *gorm.DB, dispatcher *events.Dispatcher, log zerolog.Logger) *StateMachine {
	return &StateMachine{DB: db, Events: dispatcher, Log: log, Now: time.Now}
}

// transitionFor maps an event to the job it targets and the status it implies.
// Events with no transition semantics (such as JobStatusChanged itself)
// report ok=false.
func transitionFor(e events.Event) (jobID string, target domain.JobStatus, ok bool) {
	switch ev := e.(type) {
	case events.MessagesFetched:
		return ev.JobID, domain.JobStatusProcessing, true
	case events.MessagesProcessed:
		return ev.JobID, domain.JobStatusCompleted, true
	case events.FetchFailed:
		return ev.JobID, domain.JobStatusFailed, true
	default:
		return "", "", false
	}
}

// Apply processes one consumed event:
//
//  1. Resolve the target job (missing job → ErrJobNotFound, permanent).
//  2. Guard the transition; at-or-past target is an idempotent no-op with no
//     follow-on event.
//  3. Persist the new status and timestamp under the optimistic-concurrency
//     guard (conflict → repo.ErrConflict, retryable by the consumer).
//  4. Emit JobStatusChanged, after the write is durable.
func (m *StateMachine) Apply(ctx context.Context, e events.Event) error {
	jobID, target, ok := transitionFor(e)
	if !ok {
		return fmt.Errorf("%w: %q carries no transition", events.ErrUnknownEvent, e.Name())
	}

	job, err := repo.GetJob(ctx, m.DB, jobID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return err
	}

	if !job.Status.CanAdvanceTo(target) {
		m.Log.Debug().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Str("target", string(target)).
			Msg("transition not applicable, treating as redelivery")
		consumerEvents.WithLabelValues(e.Name(), "noop").Inc()
		return nil
	}

	if err := repo.UpdateJobStatus(ctx, m.DB, job, target, m.Now().UTC()); err != nil {
		return err
	}

	m.Log.Info().
		Str("job_id", job.ID).
		Int64("user_id", job.UserID).
		Str("status", string(target)).
		Msg("job status advanced")
	consumerEvents.WithLabelValues(e.Name(), "applied").Inc()

	return m.Events.Dispatch(ctx, events.JobStatusChanged{
		JobID:  job.ID,
		UserID: job.UserID,
		Status: target,
	})
}
