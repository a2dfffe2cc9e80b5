package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/emergent/jobqueue/internal/mocks"
	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/queue"
)

func newMockedService(t *testing.T) (*queue.Service, *mocks.JobRepoMock) {
	t.Helper()
	repo := new(mocks.JobRepoMock)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return queue.NewService(repo, log, models.KindDataSourceSync, testPolicy()), repo
}

func TestEnqueuePropagatesStoreErrors(t *testing.T) {
	svc, repo := newMockedService(t)

	storeErr := errors.New("connection reset")
	repo.On("InsertIfNoActive", mock.Anything, mock.Anything).Return(nil, false, storeErr)

	_, err := svc.Enqueue(context.Background(), queue.EnqueueOptions{OwnerKey: "x"})
	assert.ErrorIs(t, err, storeErr)
}

func TestMarkCompletedNotFound(t *testing.T) {
	svc, repo := newMockedService(t)

	repo.On("MarkCompleted", mock.Anything, "missing").Return(false, nil)

	err := svc.MarkCompleted(context.Background(), "missing")
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestMarkFailedWithRetryNotFound(t *testing.T) {
	svc, repo := newMockedService(t)

	repo.On("Reschedule", mock.Anything, "missing", mock.Anything, "boom").Return(false, nil)
	repo.On("Park", mock.Anything, "gone", "boom").Return(false, nil)

	_, err := svc.MarkFailedWithRetry(context.Background(), "missing", errors.New("boom"), 0, 3)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)

	_, err = svc.MarkFailedWithRetry(context.Background(), "gone", errors.New("boom"), 3, 3)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestMarkFailedClampsNegativeAttempt(t *testing.T) {
	svc, repo := newMockedService(t)

	// attempt_count can read 0 if the row was reset between claim and
	// report; the derived attempt clamps at 0 instead of going negative
	repo.On("GetByID", mock.Anything, "job-1").Return(&models.Job{
		ID:           "job-1",
		AttemptCount: 0,
		MaxAttempts:  3,
	}, nil)
	repo.On("Reschedule", mock.Anything, "job-1", mock.Anything, "boom").Return(true, nil)

	willRetry, err := svc.MarkFailed(context.Background(), "job-1", errors.New("boom"))
	require.NoError(t, err)
	assert.True(t, willRetry)
	repo.AssertExpectations(t)
}

func TestRecoverStaleJobsUsesPolicyDefault(t *testing.T) {
	svc, repo := newMockedService(t)

	repo.On("RecoverStale", mock.Anything, models.KindDataSourceSync, mock.Anything).Return(int64(2), nil)

	count, err := svc.RecoverStaleJobs(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListDeadLetterJobsDefaultsLimit(t *testing.T) {
	svc, repo := newMockedService(t)

	repo.On("ListDeadLetter", mock.Anything, models.KindDataSourceSync, "", 50, 0).
		Return([]models.Job{}, int64(0), nil)

	_, _, err := svc.ListDeadLetterJobs(context.Background(), "", 0, -5)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
