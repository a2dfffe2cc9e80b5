// Package queue implements the persistent job queue engine: idempotent
// enqueue, concurrency-safe claiming, retry with exponential backoff,
// dead-letter escalation, and stale-job recovery.
//
// Delivery is at-least-once. A worker that outlives the stale threshold is
// presumed crashed and its job is recycled; if that worker later resumes,
// the job runs twice. Executors must tolerate duplicate execution.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/emergent/jobqueue/internal/models"
)

// EnqueueOptions carries the per-job enqueue parameters. OwnerKey is
// required; everything else defaults.
type EnqueueOptions struct {
	OwnerKey   string
	ScopeID    string
	Priority   int
	ScheduleAt *time.Time
	Metadata   datatypes.JSON
}

// DeadLetterStats summarizes the parked jobs of one kind.
type DeadLetterStats struct {
	TotalCount  int        `json:"total_count"`
	OldestJobAt *time.Time `json:"oldest_job_at"`
}

// Stats holds per-status job counts for one kind.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	DeadLetter int64 `json:"dead_letter"`
}

// Service is the queue engine for a single job kind. Multiple services may
// share one repository; the kind partitions the table between them.
type Service struct {
	repo   JobRepoInterface
	log    *slog.Logger
	kind   models.JobKind
	policy Policy
}

func NewService(repo JobRepoInterface, log *slog.Logger, kind models.JobKind, policy Policy) *Service {
	return &Service{
		repo:   repo,
		log:    log.With(slog.String("scope", "queue."+string(kind))),
		kind:   kind,
		policy: policy,
	}
}

var _ ServiceInterface = (*Service)(nil)

// Enqueue creates a pending job for the owner key, or returns the existing
// active job unchanged. The find-or-create runs as one atomic store
// operation, so concurrent callers never create duplicates.
func (s *Service) Enqueue(ctx context.Context, opts EnqueueOptions) (*models.Job, error) {
	if opts.OwnerKey == "" {
		return nil, ErrEmptyOwnerKey
	}

	scheduledAt := opts.ScheduleAt
	if scheduledAt == nil {
		now := time.Now().UTC()
		scheduledAt = &now
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		Kind:        s.kind,
		OwnerKey:    opts.OwnerKey,
		ScopeID:     opts.ScopeID,
		Status:      models.JobStatusPending,
		Priority:    opts.Priority,
		MaxAttempts: s.policy.MaxAttempts,
		ScheduledAt: scheduledAt,
		Metadata:    opts.Metadata,
	}

	out, created, err := s.repo.InsertIfNoActive(ctx, job)
	if err != nil {
		return nil, err
	}

	if created {
		s.log.Debug("job enqueued",
			slog.String("job_id", out.ID),
			slog.String("owner_key", out.OwnerKey),
			slog.Int("priority", out.Priority))
	}
	return out, nil
}

// EnqueueBatch creates jobs for every owner key without an active job and
// returns how many it created. Empty and duplicate keys are skipped.
func (s *Service) EnqueueBatch(ctx context.Context, ownerKeys []string, priority int) (int, error) {
	now := time.Now().UTC()
	jobs := make([]*models.Job, 0, len(ownerKeys))
	for _, key := range ownerKeys {
		if key == "" {
			continue
		}
		scheduledAt := now
		jobs = append(jobs, &models.Job{
			ID:          uuid.NewString(),
			Kind:        s.kind,
			OwnerKey:    key,
			Status:      models.JobStatusPending,
			Priority:    priority,
			MaxAttempts: s.policy.MaxAttempts,
			ScheduledAt: &scheduledAt,
		})
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	count, err := s.repo.InsertBatchIfNoActive(ctx, jobs)
	if err != nil {
		return 0, err
	}

	s.log.Debug("batch enqueued",
		slog.Int("requested", len(ownerKeys)),
		slog.Int("created", count))
	return count, nil
}

// Dequeue claims up to limit eligible jobs for the calling worker. Claimed
// jobs come back in processing state with their attempt count already
// incremented. Fewer than limit jobs is a normal result, not an error.
func (s *Service) Dequeue(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = s.policy.WorkerBatch
	}

	jobs, err := s.repo.ClaimPending(ctx, s.kind, limit)
	if err != nil {
		return nil, err
	}

	if len(jobs) > 0 {
		s.log.Debug("jobs claimed", slog.Int("count", len(jobs)))
	}
	return jobs, nil
}

// MarkCompleted transitions a claimed job to its terminal completed state.
// Jobs that do not exist or are not currently processing report
// ErrJobNotFound.
func (s *Service) MarkCompleted(ctx context.Context, id string) error {
	ok, err := s.repo.MarkCompleted(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed reports a failure for a claimed job and lets the engine decide
// between retry and dead-letter from the job's own attempt budget.
func (s *Service) MarkFailed(ctx context.Context, id string, jobErr error) (bool, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	// attempt_count was incremented at claim time; the 0-indexed number of
	// the attempt that just failed is one less.
	attempt := job.AttemptCount - 1
	if attempt < 0 {
		attempt = 0
	}
	return s.MarkFailedWithRetry(ctx, id, jobErr, attempt, job.MaxAttempts)
}

// MarkFailedWithRetry reports a failure with an explicit attempt number and
// budget. While attempt < maxAttempts the job is rescheduled with
// exponential backoff and willRetry is true; at the budget the job is
// parked in the dead-letter state until manual intervention. Only currently
// processing jobs accept an outcome report; a late report for a job that
// already reached a terminal state returns ErrJobNotFound and leaves the
// row untouched.
func (s *Service) MarkFailedWithRetry(ctx context.Context, id string, jobErr error, attempt, maxAttempts int) (bool, error) {
	errMsg := ""
	if jobErr != nil {
		errMsg = jobErr.Error()
	}

	if attempt < maxAttempts {
		nextRetryAt := time.Now().UTC().Add(s.policy.Backoff(attempt))
		ok, err := s.repo.Reschedule(ctx, id, nextRetryAt, errMsg)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ErrJobNotFound
		}

		s.log.Info("job rescheduled after failure",
			slog.String("job_id", id),
			slog.Int("attempt", attempt),
			slog.Time("next_retry_at", nextRetryAt),
			slog.String("error", errMsg))
		return true, nil
	}

	ok, err := s.repo.Park(ctx, id, errMsg)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrJobNotFound
	}

	s.log.Warn("job moved to dead letter",
		slog.String("job_id", id),
		slog.Int("attempt", attempt),
		slog.String("error", errMsg))
	return false, nil
}

// RecoverStaleJobs resets processing jobs abandoned past the threshold back
// to pending and returns how many it recovered. A non-positive threshold
// falls back to the kind's configured stale threshold.
func (s *Service) RecoverStaleJobs(ctx context.Context, thresholdMinutes int) (int, error) {
	threshold := time.Duration(thresholdMinutes) * time.Minute
	if thresholdMinutes <= 0 {
		threshold = s.policy.StaleThreshold
	}

	cutoff := time.Now().UTC().Add(-threshold)
	count, err := s.repo.RecoverStale(ctx, s.kind, cutoff)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.log.Warn("recovered stale jobs", slog.Int64("count", count))
	}
	return int(count), nil
}

// ListDeadLetterJobs returns a page of parked jobs plus the total count.
// An empty scopeID matches all scopes.
func (s *Service) ListDeadLetterJobs(ctx context.Context, scopeID string, limit, offset int) ([]models.Job, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	jobs, total, err := s.repo.ListDeadLetter(ctx, s.kind, scopeID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return jobs, int(total), nil
}

// RetryDeadLetterJob resets a parked job for a fresh run: pending status,
// zero attempts, cleared retry time and error. Jobs that do not exist or
// are not dead-lettered report ErrJobNotFound.
func (s *Service) RetryDeadLetterJob(ctx context.Context, id string) error {
	ok, err := s.repo.ResetDeadLetter(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobNotFound
	}

	s.log.Info("dead letter job requeued", slog.String("job_id", id))
	return nil
}

// DeleteDeadLetterJob permanently removes a parked job.
func (s *Service) DeleteDeadLetterJob(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteDeadLetter(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobNotFound
	}

	s.log.Info("dead letter job deleted", slog.String("job_id", id))
	return nil
}

// PurgeDeadLetterJobs deletes parked jobs last touched before now-olderThan
// and returns how many were removed.
func (s *Service) PurgeDeadLetterJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	count, err := s.repo.PurgeDeadLetter(ctx, s.kind, cutoff)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.log.Info("purged dead letter jobs",
			slog.Int64("count", count),
			slog.Duration("older_than", olderThan))
	}
	return int(count), nil
}

// GetDeadLetterStats reports the parked-job count and the enqueue time of
// the oldest one, nil when there are none.
func (s *Service) GetDeadLetterStats(ctx context.Context, scopeID string) (*DeadLetterStats, error) {
	total, oldestAt, err := s.repo.DeadLetterStats(ctx, s.kind, scopeID)
	if err != nil {
		return nil, err
	}
	return &DeadLetterStats{TotalCount: int(total), OldestJobAt: oldestAt}, nil
}

// GetByID fetches a job regardless of state.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// GetActiveJobForObject returns the pending or processing job for an owner
// key, or nil when the key has no active job.
func (s *Service) GetActiveJobForObject(ctx context.Context, ownerKey string) (*models.Job, error) {
	return s.repo.FindActive(ctx, s.kind, ownerKey)
}

// Stats returns per-status job counts for this kind.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Pending:    counts[models.JobStatusPending],
		Processing: counts[models.JobStatusProcessing],
		Completed:  counts[models.JobStatusCompleted],
		DeadLetter: counts[models.JobStatusDeadLetter],
	}, nil
}
