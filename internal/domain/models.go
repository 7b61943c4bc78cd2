// Package domain defines the persistence models and core value types of the
// identity service: asynchronous fetch jobs, Telegram user sessions, and the
// resolved conversation results returned to callers. Persisted types are
// mapped with GORM and shared across the repository and service layers.
package domain

import (
	"time"
)

// JobStatus is the lifecycle state of an asynchronous fetch job.
//
// The legal transitions form a forward-only chain with a failure escape:
//
//	Queued -> Processing -> Completed
//	Queued|Processing -> Failed
//
// Completed and Failed are terminal.
type JobStatus string

// Job statuses.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// statusRank orders the forward chain. Failed is deliberately absent: it is
// reachable from any non-terminal status but never left.
var statusRank = map[JobStatus]int{
	JobStatusQueued:     0,
	JobStatusProcessing: 1,
	JobStatusCompleted:  2,
}

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanAdvanceTo reports whether moving from s to target is a legal transition.
// It returns false for redeliveries (target at or behind s), for attempts to
// skip a step in the chain, and for any transition out of a terminal status.
// Callers treat a false result as an idempotent no-op, not an error.
func (s JobStatus) CanAdvanceTo(target JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if target == JobStatusFailed {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to == from+1
}

// Job is a persisted unit of asynchronous upstream work: one user's request
// to fetch and process their Telegram conversation history.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner of the job; indexed for per-user listing.
//   - Status: current lifecycle state (see JobStatus).
//   - LastStatusUpdate: UTC timestamp of the most recent status change.
//   - Version: optimistic-concurrency guard; every status write increments it,
//     and a stale Version loses the write.
type Job struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID           int64     `json:"user_id"            gorm:"not null;index:idx_user_jobs"`
	Status           JobStatus `json:"status"             gorm:"type:varchar(16);not null;default:'queued'"`
	LastStatusUpdate time.Time `json:"last_status_update" gorm:"not null"`
	Version          int64     `json:"-"                  gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string { return "jobs" }

// TelegramSession is a persisted per-user Telegram session blob. The session
// bytes are opaque to this service; they are handed to the upstream client
// as-is. Expired sessions are never returned by the session store.
type TelegramSession struct {
	UserID    int64     `json:"user_id"    gorm:"primaryKey"`
	Session   []byte    `json:"-"          gorm:"type:blob;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for TelegramSession.
func (TelegramSession) TableName() string { return "telegram_sessions" }
