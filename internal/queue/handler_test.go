package queue_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/emergent/jobqueue/internal/dto"
	"github.com/emergent/jobqueue/internal/mocks"
	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/queue"
	"github.com/emergent/jobqueue/middleware"
)

func setupRouter(t *testing.T) (*gin.Engine, *mocks.QueueServiceMock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := new(mocks.QueueServiceMock)
	h := queue.NewHandler(map[models.JobKind]queue.ServiceInterface{
		models.KindDataSourceSync: svc,
	})

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	h.Register(r)
	return r, svc
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEnqueueEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	job := &models.Job{
		ID:          "job-1",
		Kind:        models.KindDataSourceSync,
		OwnerKey:    "integration-1",
		Status:      models.JobStatusPending,
		MaxAttempts: 3,
	}
	svc.On("Enqueue", mock.Anything, mock.MatchedBy(func(opts queue.EnqueueOptions) bool {
		return opts.OwnerKey == "integration-1" && opts.Priority == 5
	})).Return(job, nil)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/jobs", dto.EnqueueRequest{
		OwnerKey: "integration-1",
		Priority: 5,
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, "pending", resp.Status)
	svc.AssertExpectations(t)
}

func TestEnqueueEndpointValidation(t *testing.T) {
	r, svc := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/jobs", map[string]any{"priority": 5})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Enqueue")
}

func TestEnqueueEndpointUnknownKind(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/queues/no_such_queue/jobs", dto.EnqueueRequest{OwnerKey: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnqueueBatchEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	svc.On("EnqueueBatch", mock.Anything, []string{"a", "b"}, 0).Return(2, nil)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/jobs/batch", dto.EnqueueBatchRequest{
		OwnerKeys: []string{"a", "b"},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Created)
}

func TestGetJobEndpointNotFound(t *testing.T) {
	r, svc := setupRouter(t)

	svc.On("GetByID", mock.Anything, "missing").Return(nil, queue.ErrJobNotFound)

	w := doJSON(r, http.MethodGet, "/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	svc.On("Stats", mock.Anything).Return(&queue.Stats{Pending: 3, DeadLetter: 1}, nil)

	w := doJSON(r, http.MethodGet, "/queues/datasource_sync/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp queue.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Pending)
	assert.Equal(t, int64(1), resp.DeadLetter)
}

func TestRecoverStaleEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	svc.On("RecoverStaleJobs", mock.Anything, 15).Return(2, nil)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/recover-stale?threshold_minutes=15", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"recovered": 2}`, w.Body.String())
}

func TestRecoverStaleEndpointRejectsBadThreshold(t *testing.T) {
	r, svc := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/recover-stale?threshold_minutes=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "RecoverStaleJobs")
}

func TestListDeadLetterEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	jobs := []models.Job{{ID: "dead-1", Kind: models.KindDataSourceSync, Status: models.JobStatusDeadLetter}}
	svc.On("ListDeadLetterJobs", mock.Anything, "org-1", 10, 0).Return(jobs, 1, nil)

	w := doJSON(r, http.MethodGet, "/queues/datasource_sync/dead-letter?limit=10&scope_id=org-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "dead-1", resp.Jobs[0].ID)
}

func TestRetryDeadLetterEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	svc.On("RetryDeadLetterJob", mock.Anything, "dead-1").Return(nil)
	svc.On("RetryDeadLetterJob", mock.Anything, "missing").Return(queue.ErrJobNotFound)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/dead-letter/dead-1/retry", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodPost, "/queues/datasource_sync/dead-letter/missing/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurgeDeadLetterEndpoint(t *testing.T) {
	r, svc := setupRouter(t)

	svc.On("PurgeDeadLetterJobs", mock.Anything, 48*time.Hour).Return(4, nil)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/dead-letter/purge?older_than=48h", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.PurgeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Purged)
}

func TestPurgeDeadLetterEndpointRejectsBadDuration(t *testing.T) {
	r, svc := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/queues/datasource_sync/dead-letter/purge?older_than=-1h", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "PurgeDeadLetterJobs")
}
