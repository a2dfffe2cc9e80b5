package dto

import (
	"encoding/json"
	"time"

	"github.com/emergent/jobqueue/internal/models"
)

type EnqueueRequest struct {
	OwnerKey   string          `json:"owner_key" validate:"required"`
	ScopeID    string          `json:"scope_id,omitempty"`
	Priority   int             `json:"priority" validate:"gte=0,lte=100"`
	ScheduleAt *time.Time      `json:"schedule_at,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type EnqueueBatchRequest struct {
	OwnerKeys []string `json:"owner_keys" validate:"required,min=1,dive,required"`
	Priority  int      `json:"priority" validate:"gte=0,lte=100"`
}

type JobResponse struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	OwnerKey     string          `json:"owner_key"`
	ScopeID      string          `json:"scope_id,omitempty"`
	Status       string          `json:"status"`
	Priority     int             `json:"priority"`
	AttemptCount int             `json:"attempt_count"`
	MaxAttempts  int             `json:"max_attempts"`
	ScheduledAt  *time.Time      `json:"scheduled_at,omitempty"`
	NextRetryAt  *time.Time      `json:"next_retry_at,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}

type BatchResponse struct {
	Created int `json:"created"`
}

type PurgeResponse struct {
	Purged int `json:"purged"`
}

// FromModel maps a stored job onto its API representation.
func FromModel(job *models.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Kind:         string(job.Kind),
		OwnerKey:     job.OwnerKey,
		ScopeID:      job.ScopeID,
		Status:       string(job.Status),
		Priority:     job.Priority,
		AttemptCount: job.AttemptCount,
		MaxAttempts:  job.MaxAttempts,
		ScheduledAt:  job.ScheduledAt,
		NextRetryAt:  job.NextRetryAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ErrorMessage: job.ErrorMessage,
		Metadata:     json.RawMessage(job.Metadata),
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// FromModels maps a slice of stored jobs, never returning nil so the JSON
// encoding is always an array.
func FromModels(jobs []models.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i := range jobs {
		out[i] = FromModel(&jobs[i])
	}
	return out
}
