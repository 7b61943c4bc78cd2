package jobs

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fwt/identity-core/internal/cqrs"
	"github.com/fwt/identity-core/internal/events"
	"github.com/fwt/identity-core/internal/repo"
)

// CommandNameStartDialogsFetch is the dispatcher registry key for
// StartDialogsFetch.
const CommandNameStartDialogsFetch = "StartDialogsFetch"

// StartDialogsFetch requests a new asynchronous fetch of the user's
// conversation history. The created job starts Queued; upstream workers
// advance it by emitting events consumed by the state machine.
type StartDialogsFetch struct {
	UserID int64
}

// Name implements cqrs.Request.
func (StartDialogsFetch) Name() string { return CommandNameStartDialogsFetch }

// IsCommand implements cqrs.Command.
func (StartDialogsFetch) IsCommand() {}

var _ cqrs.Command = StartDialogsFetch{}

// StartFetchHandler creates Queued jobs for StartDialogsFetch commands.
type StartFetchHandler struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// NewStartFetchHandler constructs a StartFetchHandler over db.
func NewStartFetchHandler(db *gorm.DB, log zerolog.Logger) *StartFetchHandler {
	return &StartFetchHandler{DB: db, Log: log}
}

// Handle implements cqrs.Handler. The result is the created *domain.Job. No
// events are emitted here: the first status event comes from the upstream
// fetcher once the fetch lands.
func (h *StartFetchHandler) Handle(ctx context.Context, req cqrs.Request) (any, []events.Event, error) {
	cmd, ok := req.(StartDialogsFetch)
	if !ok || cmd.UserID <= 0 {
		return nil, nil, cqrs.ErrInvalidRequest
	}
	job, err := repo.CreateJob(ctx, h.DB, cmd.UserID)
	if err != nil {
		return nil, nil, err
	}
	h.Log.Info().Str("job_id", job.ID).Int64("user_id", cmd.UserID).Msg("fetch job queued")
	return job, nil, nil
}
