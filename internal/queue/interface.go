package queue

import (
	"context"
	"time"

	"github.com/emergent/jobqueue/internal/models"
)

// JobRepoInterface is the contract the engine requires from the job store.
// Every mutating method is a single atomic, conditionally-guarded operation;
// the bool results report whether the guard matched a row.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	FindActive(ctx context.Context, kind models.JobKind, ownerKey string) (*models.Job, error)
	InsertIfNoActive(ctx context.Context, job *models.Job) (*models.Job, bool, error)
	InsertBatchIfNoActive(ctx context.Context, jobs []*models.Job) (int, error)
	ClaimPending(ctx context.Context, kind models.JobKind, limit int) ([]models.Job, error)
	MarkCompleted(ctx context.Context, id string) (bool, error)
	Reschedule(ctx context.Context, id string, nextRetryAt time.Time, errMsg string) (bool, error)
	Park(ctx context.Context, id string, errMsg string) (bool, error)
	RecoverStale(ctx context.Context, kind models.JobKind, cutoff time.Time) (int64, error)
	ListDeadLetter(ctx context.Context, kind models.JobKind, scopeID string, limit, offset int) ([]models.Job, int64, error)
	ResetDeadLetter(ctx context.Context, id string) (bool, error)
	DeleteDeadLetter(ctx context.Context, id string) (bool, error)
	PurgeDeadLetter(ctx context.Context, kind models.JobKind, cutoff time.Time) (int64, error)
	DeadLetterStats(ctx context.Context, kind models.JobKind, scopeID string) (int64, *time.Time, error)
	CountByStatus(ctx context.Context, kind models.JobKind) (map[models.JobStatus]int64, error)
}

// ServiceInterface is the engine surface consumed by producers (Enqueue*),
// workers (Dequeue, Mark*), and admin tooling (the rest).
type ServiceInterface interface {
	Enqueue(ctx context.Context, opts EnqueueOptions) (*models.Job, error)
	EnqueueBatch(ctx context.Context, ownerKeys []string, priority int) (int, error)
	Dequeue(ctx context.Context, limit int) ([]models.Job, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, jobErr error) (bool, error)
	MarkFailedWithRetry(ctx context.Context, id string, jobErr error, attempt, maxAttempts int) (bool, error)
	RecoverStaleJobs(ctx context.Context, thresholdMinutes int) (int, error)
	ListDeadLetterJobs(ctx context.Context, scopeID string, limit, offset int) ([]models.Job, int, error)
	RetryDeadLetterJob(ctx context.Context, id string) error
	DeleteDeadLetterJob(ctx context.Context, id string) error
	PurgeDeadLetterJobs(ctx context.Context, olderThan time.Duration) (int, error)
	GetDeadLetterStats(ctx context.Context, scopeID string) (*DeadLetterStats, error)
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetActiveJobForObject(ctx context.Context, ownerKey string) (*models.Job, error)
	Stats(ctx context.Context) (*Stats, error)
}
