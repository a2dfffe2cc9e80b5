package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusDeadLetter JobStatus = "dead_letter"
)

// JobKind names a queue. Each kind carries its own retry policy and worker
// configuration; the engine itself treats kinds as opaque partitions.
type JobKind string

const (
	KindDataSourceSync JobKind = "datasource_sync"
	KindGraphEmbedding JobKind = "graph_embedding"
)

// Job is one unit of background work. At most one active job (pending or
// processing) exists per (kind, owner_key). OwnerKey is the idempotency key
// for enqueue: an integration ID for sync jobs, a graph object ID for
// embedding jobs.
type Job struct {
	ID           string     `gorm:"type:varchar(36);primaryKey"`
	Kind         JobKind    `gorm:"type:varchar(64);not null;index:idx_jobs_kind_status"`
	OwnerKey     string     `gorm:"type:varchar(255);not null;index"`
	ScopeID      string     `gorm:"type:varchar(36);index"`
	Status       JobStatus  `gorm:"type:varchar(32);not null;default:'pending';index:idx_jobs_kind_status"`
	Priority     int        `gorm:"not null;default:0"`
	AttemptCount int        `gorm:"not null;default:0"`
	MaxAttempts  int        `gorm:"not null;default:3"`
	ScheduledAt  *time.Time `gorm:"index"`
	NextRetryAt  *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string        `gorm:"type:text"`
	Metadata     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

// IsActive reports whether the job occupies its owner key's active slot.
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}
