package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fwt/identity-core/internal/cqrs"
	"github.com/fwt/identity-core/internal/domain"
	"github.com/fwt/identity-core/internal/repo"
)

func TestStartFetchHandler_CreatesQueuedJob(t *testing.T) {
	db := newTestDB(t)
	h := NewStartFetchHandler(db, zerolog.Nop())
	ctx := context.Background()

	res, evs, err := h.Handle(ctx, StartDialogsFetch{UserID: 5})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if evs != nil {
		t.Fatalf("events = %v; want none at job creation", evs)
	}

	job := res.(*domain.Job)
	if job.UserID != 5 || job.Status != domain.JobStatusQueued {
		t.Fatalf("job = %+v; want queued job for user 5", job)
	}

	stored, err := repo.GetJob(ctx, db, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != domain.JobStatusQueued {
		t.Fatalf("stored status = %s; want queued", stored.Status)
	}
}

func TestStartFetchHandler_RejectsInvalidCommand(t *testing.T) {
	db := newTestDB(t)
	h := NewStartFetchHandler(db, zerolog.Nop())

	if _, _, err := h.Handle(context.Background(), StartDialogsFetch{}); !errors.Is(err, cqrs.ErrInvalidRequest) {
		t.Fatalf("err = %v; want ErrInvalidRequest", err)
	}
}
