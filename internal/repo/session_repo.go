// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the session store handed to components
// that call upstream on a user's behalf.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fwt/identity-core/internal/domain"
	"github.com/fwt/identity-core/internal/telegram"
)

// SessionStore is a gorm-backed telegram.SessionStore. It is constructed at
// composition time and passed explicitly to the handlers that need it.
type SessionStore struct {
	DB *gorm.DB

	// Now is a test seam for expiry checks; defaults to time.Now.
	Now func() time.Time
}

// NewSessionStore returns a SessionStore over db.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{DB: db, Now: time.Now}
}

// Load implements telegram.SessionStore. Expired rows are reported as
// telegram.ErrSessionExpired and never returned.
func (s *SessionStore) Load(ctx context.Context, userID int64) (*domain.TelegramSession, error) {
	var sess domain.TelegramSession
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, telegram.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !sess.ExpiresAt.After(s.Now().UTC()) {
		return nil, telegram.ErrSessionExpired
	}
	return &sess, nil
}

// Save upserts a session blob for userID with the given expiry.
func (s *SessionStore) Save(ctx context.Context, userID int64, session []byte, expiresAt time.Time) error {
	sess := domain.TelegramSession{
		UserID:    userID,
		Session:   session,
		ExpiresAt: expiresAt.UTC(),
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"session", "expires_at", "updated_at"}),
		}).
		Create(&sess).Error
}
