package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/emergent/jobqueue/internal/models"
)

// JobRepoMock is a testify mock of queue.JobRepoInterface.
type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobRepoMock) GetByID(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	if job, ok := args.Get(0).(*models.Job); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobRepoMock) FindActive(ctx context.Context, kind models.JobKind, ownerKey string) (*models.Job, error) {
	args := m.Called(ctx, kind, ownerKey)
	if job, ok := args.Get(0).(*models.Job); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobRepoMock) InsertIfNoActive(ctx context.Context, job *models.Job) (*models.Job, bool, error) {
	args := m.Called(ctx, job)
	if out, ok := args.Get(0).(*models.Job); ok {
		return out, args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *JobRepoMock) InsertBatchIfNoActive(ctx context.Context, jobs []*models.Job) (int, error) {
	args := m.Called(ctx, jobs)
	return args.Int(0), args.Error(1)
}

func (m *JobRepoMock) ClaimPending(ctx context.Context, kind models.JobKind, limit int) ([]models.Job, error) {
	args := m.Called(ctx, kind, limit)
	if jobs, ok := args.Get(0).([]models.Job); ok {
		return jobs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobRepoMock) MarkCompleted(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) Reschedule(ctx context.Context, id string, nextRetryAt time.Time, errMsg string) (bool, error) {
	args := m.Called(ctx, id, nextRetryAt, errMsg)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) Park(ctx context.Context, id string, errMsg string) (bool, error) {
	args := m.Called(ctx, id, errMsg)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) RecoverStale(ctx context.Context, kind models.JobKind, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, kind, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *JobRepoMock) ListDeadLetter(ctx context.Context, kind models.JobKind, scopeID string, limit, offset int) ([]models.Job, int64, error) {
	args := m.Called(ctx, kind, scopeID, limit, offset)
	if jobs, ok := args.Get(0).([]models.Job); ok {
		return jobs, args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *JobRepoMock) ResetDeadLetter(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) DeleteDeadLetter(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) PurgeDeadLetter(ctx context.Context, kind models.JobKind, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, kind, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *JobRepoMock) DeadLetterStats(ctx context.Context, kind models.JobKind, scopeID string) (int64, *time.Time, error) {
	args := m.Called(ctx, kind, scopeID)
	var oldest *time.Time
	if t, ok := args.Get(1).(*time.Time); ok {
		oldest = t
	}
	return args.Get(0).(int64), oldest, args.Error(2)
}

func (m *JobRepoMock) CountByStatus(ctx context.Context, kind models.JobKind) (map[models.JobStatus]int64, error) {
	args := m.Called(ctx, kind)
	if counts, ok := args.Get(0).(map[models.JobStatus]int64); ok {
		return counts, args.Error(1)
	}
	return nil, args.Error(1)
}
