package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/queue"
)

// QueueServiceMock is a testify mock of queue.ServiceInterface.
type QueueServiceMock struct {
	mock.Mock
}

func (m *QueueServiceMock) Enqueue(ctx context.Context, opts queue.EnqueueOptions) (*models.Job, error) {
	args := m.Called(ctx, opts)
	if job, ok := args.Get(0).(*models.Job); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueServiceMock) EnqueueBatch(ctx context.Context, ownerKeys []string, priority int) (int, error) {
	args := m.Called(ctx, ownerKeys, priority)
	return args.Int(0), args.Error(1)
}

func (m *QueueServiceMock) Dequeue(ctx context.Context, limit int) ([]models.Job, error) {
	args := m.Called(ctx, limit)
	if jobs, ok := args.Get(0).([]models.Job); ok {
		return jobs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueServiceMock) MarkCompleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *QueueServiceMock) MarkFailed(ctx context.Context, id string, jobErr error) (bool, error) {
	args := m.Called(ctx, id, jobErr)
	return args.Bool(0), args.Error(1)
}

func (m *QueueServiceMock) MarkFailedWithRetry(ctx context.Context, id string, jobErr error, attempt, maxAttempts int) (bool, error) {
	args := m.Called(ctx, id, jobErr, attempt, maxAttempts)
	return args.Bool(0), args.Error(1)
}

func (m *QueueServiceMock) RecoverStaleJobs(ctx context.Context, thresholdMinutes int) (int, error) {
	args := m.Called(ctx, thresholdMinutes)
	return args.Int(0), args.Error(1)
}

func (m *QueueServiceMock) ListDeadLetterJobs(ctx context.Context, scopeID string, limit, offset int) ([]models.Job, int, error) {
	args := m.Called(ctx, scopeID, limit, offset)
	if jobs, ok := args.Get(0).([]models.Job); ok {
		return jobs, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *QueueServiceMock) RetryDeadLetterJob(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *QueueServiceMock) DeleteDeadLetterJob(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *QueueServiceMock) PurgeDeadLetterJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func (m *QueueServiceMock) GetDeadLetterStats(ctx context.Context, scopeID string) (*queue.DeadLetterStats, error) {
	args := m.Called(ctx, scopeID)
	if stats, ok := args.Get(0).(*queue.DeadLetterStats); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueServiceMock) GetByID(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	if job, ok := args.Get(0).(*models.Job); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueServiceMock) GetActiveJobForObject(ctx context.Context, ownerKey string) (*models.Job, error) {
	args := m.Called(ctx, ownerKey)
	if job, ok := args.Get(0).(*models.Job); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueServiceMock) Stats(ctx context.Context) (*queue.Stats, error) {
	args := m.Called(ctx)
	if stats, ok := args.Get(0).(*queue.Stats); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}
