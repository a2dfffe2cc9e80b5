package queue

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/emergent/jobqueue/common"
	"github.com/emergent/jobqueue/internal/dto"
	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/middleware"
)

// Handler exposes the producer and operational interface over HTTP. One
// handler fronts every registered kind; the :kind path segment selects the
// queue.
type Handler struct {
	services map[models.JobKind]ServiceInterface

	// resolver serves kind-agnostic lookups (job IDs are globally unique)
	resolver ServiceInterface
}

func NewHandler(services map[models.JobKind]ServiceInterface) *Handler {
	h := &Handler{services: services}
	for _, svc := range services {
		h.resolver = svc
		break
	}
	return h
}

// Register mounts the queue routes on the given router.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/jobs/:id", h.GetJob)

	q := r.Group("/queues/:kind")
	q.POST("/jobs", h.Enqueue)
	q.POST("/jobs/batch", h.EnqueueBatch)
	q.GET("/stats", h.Stats)
	q.POST("/recover-stale", h.RecoverStale)
	q.GET("/dead-letter", h.ListDeadLetter)
	q.GET("/dead-letter/stats", h.DeadLetterStats)
	q.POST("/dead-letter/purge", h.PurgeDeadLetter)
	q.POST("/dead-letter/:id/retry", h.RetryDeadLetter)
	q.DELETE("/dead-letter/:id", h.DeleteDeadLetter)
}

func (h *Handler) svcFor(c *gin.Context) (ServiceInterface, bool) {
	kind := models.JobKind(c.Param("kind"))
	svc, ok := h.services[kind]
	if !ok {
		c.Error(common.Errf(http.StatusNotFound, "unknown queue kind: %s", kind))
		return nil, false
	}
	return svc, true
}

// mapErr translates engine errors onto the API error envelope.
func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return common.Errf(http.StatusNotFound, "job not found")
	case errors.Is(err, ErrEmptyOwnerKey):
		return common.Errf(http.StatusBadRequest, "owner_key must not be empty")
	default:
		return common.Errf(http.StatusInternalServerError, "queue operation failed")
	}
}

// Enqueue handles job creation. Re-enqueueing an owner key with an active
// job returns that job unchanged.
func (h *Handler) Enqueue(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	var req dto.EnqueueRequest
	if !middleware.Bind(c, &req) {
		return
	}

	job, err := svc.Enqueue(c.Request.Context(), EnqueueOptions{
		OwnerKey:   req.OwnerKey,
		ScopeID:    req.ScopeID,
		Priority:   req.Priority,
		ScheduleAt: req.ScheduleAt,
		Metadata:   datatypes.JSON(req.Metadata),
	})
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusCreated, dto.FromModel(job))
}

// EnqueueBatch creates jobs for every owner key without an active one and
// reports how many were created.
func (h *Handler) EnqueueBatch(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	var req dto.EnqueueBatchRequest
	if !middleware.Bind(c, &req) {
		return
	}

	count, err := svc.EnqueueBatch(c.Request.Context(), req.OwnerKeys, req.Priority)
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusOK, dto.BatchResponse{Created: count})
}

// GetJob fetches a single job by ID, any kind, any state.
func (h *Handler) GetJob(c *gin.Context) {
	if h.resolver == nil {
		c.Error(common.Errf(http.StatusInternalServerError, "no queues registered"))
		return
	}

	job, err := h.resolver.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusOK, dto.FromModel(job))
}

// Stats returns per-status counts for the kind.
func (h *Handler) Stats(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	stats, err := svc.Stats(c.Request.Context())
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RecoverStale runs the stale-job reaper once with an optional
// threshold_minutes query override.
func (h *Handler) RecoverStale(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	threshold := 0
	if v := c.Query("threshold_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.Error(common.Errf(http.StatusBadRequest, "threshold_minutes must be a positive integer"))
			return
		}
		threshold = n
	}

	count, err := svc.RecoverStaleJobs(c.Request.Context(), threshold)
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"recovered": count})
}

// ListDeadLetter returns a page of parked jobs.
func (h *Handler) ListDeadLetter(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, total, err := svc.ListDeadLetterJobs(c.Request.Context(), c.Query("scope_id"), limit, offset)
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusOK, dto.JobListResponse{Jobs: dto.FromModels(jobs), Total: total})
}

// DeadLetterStats returns the parked-job count and oldest enqueue time.
func (h *Handler) DeadLetterStats(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	stats, err := svc.GetDeadLetterStats(c.Request.Context(), c.Query("scope_id"))
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusOK, stats)
}

// PurgeDeadLetter deletes parked jobs older than the older_than query
// duration (default seven days).
func (h *Handler) PurgeDeadLetter(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	olderThan := 7 * 24 * time.Hour
	if v := c.Query("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			c.Error(common.Errf(http.StatusBadRequest, "older_than must be a positive duration"))
			return
		}
		olderThan = d
	}

	count, err := svc.PurgeDeadLetterJobs(c.Request.Context(), olderThan)
	if err != nil {
		c.Error(mapErr(err))
		return
	}

	c.JSON(http.StatusOK, dto.PurgeResponse{Purged: count})
}

// RetryDeadLetter requeues one parked job.
func (h *Handler) RetryDeadLetter(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	if err := svc.RetryDeadLetterJob(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(mapErr(err))
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteDeadLetter permanently removes one parked job.
func (h *Handler) DeleteDeadLetter(c *gin.Context) {
	svc, ok := h.svcFor(c)
	if !ok {
		return
	}

	if err := svc.DeleteDeadLetterJob(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(mapErr(err))
		return
	}

	c.Status(http.StatusNoContent)
}
