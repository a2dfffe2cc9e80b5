package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/queue"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ queue.JobRepoInterface = (*JobRepository)(nil)

var activeStatuses = []models.JobStatus{
	models.JobStatusPending,
	models.JobStatusProcessing,
}

// Create inserts a new job record. Callers that need the one-active-job
// guarantee must go through InsertIfNoActive instead.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID retrieves a single job by ID. Returns gorm.ErrRecordNotFound
// (wrapped) when the job does not exist.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// FindActive returns the pending or processing job for an owner key, or nil
// when the owner key has no active job.
func (r *JobRepository) FindActive(ctx context.Context, kind models.JobKind, ownerKey string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Where("kind = ? AND owner_key = ? AND status IN ?", kind, ownerKey, activeStatuses).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return &job, nil
}

// InsertIfNoActive atomically creates the job unless its owner key already
// has an active one, in which case the existing job is returned unchanged.
// The created flag reports which happened. Concurrent callers racing past
// the in-transaction check are caught by the partial unique index; the
// loser re-reads the winner's row.
func (r *JobRepository) InsertIfNoActive(ctx context.Context, job *models.Job) (*models.Job, bool, error) {
	var out *models.Job
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Job
		err := tx.Where("kind = ? AND owner_key = ? AND status IN ?", job.Kind, job.OwnerKey, activeStatuses).
			First(&existing).Error
		if err == nil {
			out = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find active job: %w", err)
		}

		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		out = job
		created = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, ferr := r.FindActive(ctx, job.Kind, job.OwnerKey); ferr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	return out, created, nil
}

// InsertBatchIfNoActive creates jobs for every owner key without an active
// one, skipping duplicates within the call, and returns how many were
// created.
func (r *JobRepository) InsertBatchIfNoActive(ctx context.Context, jobs []*models.Job) (int, error) {
	count := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]bool, len(jobs))
		for _, job := range jobs {
			if seen[job.OwnerKey] {
				continue
			}
			seen[job.OwnerKey] = true

			var existing models.Job
			err := tx.Where("kind = ? AND owner_key = ? AND status IN ?", job.Kind, job.OwnerKey, activeStatuses).
				First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("find active job: %w", err)
			}

			if err := tx.Create(job).Error; err != nil {
				return fmt.Errorf("create job: %w", err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// ClaimPending selects up to limit eligible pending jobs ordered by priority
// then enqueue order and transitions each to processing, incrementing its
// attempt count and stamping started_at. Every transition is guarded on the
// current status, so a row grabbed by a concurrent claimer is skipped rather
// than double-claimed. On postgres the candidate scan additionally takes
// FOR UPDATE SKIP LOCKED so concurrent workers never block on each other.
func (r *JobRepository) ClaimPending(ctx context.Context, kind models.JobKind, limit int) ([]models.Job, error) {
	now := time.Now().UTC()
	var claimed []models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("kind = ? AND status = ?", kind, models.JobStatusPending).
			Where("scheduled_at IS NULL OR scheduled_at <= ?", now).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
			Order("priority DESC, created_at ASC, id ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidates []models.Job
		if err := q.Find(&candidates).Error; err != nil {
			return fmt.Errorf("select pending jobs: %w", err)
		}

		for _, job := range candidates {
			res := tx.Model(&models.Job{}).
				Where("id = ? AND status = ?", job.ID, models.JobStatusPending).
				Updates(map[string]any{
					"status":        models.JobStatusProcessing,
					"attempt_count": gorm.Expr("attempt_count + ?", 1),
					"started_at":    now,
				})
			if res.Error != nil {
				return fmt.Errorf("claim job: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				// lost the race to another worker
				continue
			}

			startedAt := now
			job.Status = models.JobStatusProcessing
			job.AttemptCount++
			job.StartedAt = &startedAt
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// MarkCompleted transitions a claimed job to completed. The status guard
// keeps terminal and unclaimed rows untouched: completing a job that is not
// currently processing returns false.
func (r *JobRepository) MarkCompleted(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Updates(map[string]any{
			"status":       models.JobStatusCompleted,
			"completed_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark completed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Reschedule puts a failed claimed job back in the pending pool with a
// retry time and the failure message. The status guard makes a late failure
// report a no-op (false) once the job left processing, so a reaped worker
// resuming after stale recovery cannot drag a completed job back to pending.
func (r *JobRepository) Reschedule(ctx context.Context, id string, nextRetryAt time.Time, errMsg string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Updates(map[string]any{
			"status":        models.JobStatusPending,
			"next_retry_at": nextRetryAt,
			"error_message": errMsg,
			"started_at":    nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("reschedule job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Park moves a claimed job to the dead-letter state, keeping its attempt
// count and recording the final error for diagnostics. Like Reschedule, the
// status guard rejects outcome reports for jobs no longer processing.
func (r *JobRepository) Park(ctx context.Context, id string, errMsg string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Updates(map[string]any{
			"status":        models.JobStatusDeadLetter,
			"error_message": errMsg,
		})
	if res.Error != nil {
		return false, fmt.Errorf("park job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecoverStale resets processing jobs whose started_at is older than the
// cutoff back to pending. Attempt counts are untouched: they were already
// incremented when the dead worker claimed the job. The status guard keeps
// the update from racing a worker that finishes at the same moment.
func (r *JobRepository) RecoverStale(ctx context.Context, kind models.JobKind, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("kind = ? AND status = ? AND started_at < ?", kind, models.JobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":     models.JobStatusPending,
			"started_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListDeadLetter returns a page of dead-letter jobs plus the total count.
// Ordering is newest-first with the ID as tie-break, so consecutive pages
// over a static dataset never overlap or skip rows. An empty scopeID
// matches all scopes.
func (r *JobRepository) ListDeadLetter(ctx context.Context, kind models.JobKind, scopeID string, limit, offset int) ([]models.Job, int64, error) {
	var total int64
	if err := r.deadLetterFilter(ctx, kind, scopeID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count dead letter jobs: %w", err)
	}

	var jobs []models.Job
	err := r.deadLetterFilter(ctx, kind, scopeID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list dead letter jobs: %w", err)
	}

	return jobs, total, nil
}

// deadLetterFilter builds a fresh dead-letter query; gorm builders are not
// reusable across finisher calls.
func (r *JobRepository) deadLetterFilter(ctx context.Context, kind models.JobKind, scopeID string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("kind = ? AND status = ?", kind, models.JobStatusDeadLetter)
	if scopeID != "" {
		q = q.Where("scope_id = ?", scopeID)
	}
	return q
}

// ResetDeadLetter fully resets a dead-letter job for a fresh run: pending
// status, zero attempts, no retry time, no error. The status guard makes
// the reset a no-op (false) for jobs in any other state.
func (r *JobRepository) ResetDeadLetter(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusDeadLetter).
		Updates(map[string]any{
			"status":        models.JobStatusPending,
			"attempt_count": 0,
			"next_retry_at": nil,
			"error_message": nil,
			"started_at":    nil,
			"completed_at":  nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("reset dead letter job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteDeadLetter permanently removes a dead-letter job. The status guard
// refuses to delete jobs in any other state.
func (r *JobRepository) DeleteDeadLetter(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.JobStatusDeadLetter).
		Delete(&models.Job{})
	if res.Error != nil {
		return false, fmt.Errorf("delete dead letter job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PurgeDeadLetter deletes dead-letter jobs last touched before the cutoff.
// Rows in any other state are never purged regardless of age.
func (r *JobRepository) PurgeDeadLetter(ctx context.Context, kind models.JobKind, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND updated_at < ?", kind, models.JobStatusDeadLetter, cutoff).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge dead letter jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeadLetterStats returns the dead-letter count and the enqueue time of the
// oldest parked job, nil when the queue is empty.
func (r *JobRepository) DeadLetterStats(ctx context.Context, kind models.JobKind, scopeID string) (int64, *time.Time, error) {
	var total int64
	if err := r.deadLetterFilter(ctx, kind, scopeID).Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("count dead letter jobs: %w", err)
	}
	if total == 0 {
		return 0, nil, nil
	}

	var oldest models.Job
	err := r.deadLetterFilter(ctx, kind, scopeID).
		Order("created_at ASC, id ASC").
		First(&oldest).Error
	if err != nil {
		return 0, nil, fmt.Errorf("find oldest dead letter job: %w", err)
	}

	oldestAt := oldest.CreatedAt
	return total, &oldestAt, nil
}

// CountByStatus returns per-status job counts for one kind. Statuses with
// no rows are present with a zero count.
func (r *JobRepository) CountByStatus(ctx context.Context, kind models.JobKind) (map[models.JobStatus]int64, error) {
	var rows []struct {
		Status models.JobStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, count(*) as n").
		Where("kind = ?", kind).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}

	counts := map[models.JobStatus]int64{
		models.JobStatusPending:    0,
		models.JobStatusProcessing: 0,
		models.JobStatusCompleted:  0,
		models.JobStatusDeadLetter: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}
