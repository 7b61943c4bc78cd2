package telegram

import (
	"context"

	"github.com/fwt/identity-core/internal/domain"
)

// SessionStore loads persisted user sessions. It is passed explicitly into
// whichever component needs one; there is no process-wide session manager.
type SessionStore interface {
	// Load returns the live session for userID. A missing row yields
	// ErrSessionNotFound; a stale row yields ErrSessionExpired.
	Load(ctx context.Context, userID int64) (*domain.TelegramSession, error)
}
