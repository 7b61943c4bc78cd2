// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Job model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a job is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - UpdateJobStatus guards against lost updates with a version column and
//     returns ErrConflict when another writer got there first.
//   - On other DB errors, the raw gorm error is propagated.
//
// The job table is shared with other processes (competing queue consumers);
// nothing here assumes exclusive access to a row.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fwt/identity-core/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound for convenience and consistency across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrConflict is returned by UpdateJobStatus when the row's version no longer
// matches: a concurrent writer updated the job between read and write. The
// caller should reload and retry a bounded number of times.
var ErrConflict = errors.New("job update conflict")

// CreateJob inserts a new job for userID in the Queued state and returns it.
// The job ID is a randomly generated UUID and timestamps are set to UTC.
func CreateJob(ctx context.Context, db *gorm.DB, userID int64) (*domain.Job, error) {
	now := time.Now().UTC()
	j := &domain.Job{
		ID:               uuid.NewString(),
		UserID:           userID,
		Status:           domain.JobStatusQueued,
		LastStatusUpdate: now,
		CreatedAt:        now,
	}
	if err := db.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

// GetJob fetches a single job by ID, or ErrNotFound if missing.
func GetJob(ctx context.Context, db *gorm.DB, id string) (*domain.Job, error) {
	var j domain.Job
	if err := db.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns all jobs belonging to userID, most recent first.
func ListJobs(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Job, error) {
	var out []domain.Job
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateJobStatus moves job to status with an optimistic-concurrency guard:
// the write only lands if the row still carries job.Version. On success the
// passed job is updated in place (status, timestamp, bumped version). If the
// version moved underneath us it returns ErrConflict; if the row is gone it
// returns ErrNotFound.
func UpdateJobStatus(ctx context.Context, db *gorm.DB, job *domain.Job, status domain.JobStatus, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND version = ?", job.ID, job.Version).
		Updates(map[string]any{
			"status":             status,
			"last_status_update": now,
			"version":            job.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a lost race from a deleted row.
		var exists int64
		if err := db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", job.ID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	job.Status = status
	job.LastStatusUpdate = now
	job.Version++
	return nil
}
