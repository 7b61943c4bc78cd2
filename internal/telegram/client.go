// Package telegram defines the boundary to the upstream Telegram data source
// and to the persisted user sessions it requires. The wire protocol itself is
// out of scope; implementations of Client live behind this interface.
package telegram

import (
	"context"

	"github.com/fwt/identity-core/internal/domain"
)

// Client fetches upstream data on behalf of an authenticated user session.
type Client interface {
	// FetchDialogs returns the user's complete dialog graph in one call.
	// It fails with ErrSliceNotSupported when upstream answers with a
	// paginated slice instead of the full set, and with *TransientError
	// for network-level faults eligible for caller-directed retry.
	FetchDialogs(ctx context.Context, session *domain.TelegramSession) (*domain.DialogGraph, error)
}
