package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/emergent/jobqueue/internal/dto"
	"github.com/emergent/jobqueue/internal/models"
)

// DataSourceSyncExecutor drives one data-source synchronization. The real
// provider call sits behind SyncFunc; the default simulates a short sync so
// the worker loop is exercisable without credentials.
type DataSourceSyncExecutor struct {
	log      *slog.Logger
	SyncFunc func(ctx context.Context, integrationID string, meta dto.DataSourceSyncMetadata) error
}

func NewDataSourceSyncExecutor(log *slog.Logger) *DataSourceSyncExecutor {
	return &DataSourceSyncExecutor{log: log.With(slog.String("scope", "worker.datasource_sync"))}
}

func (e *DataSourceSyncExecutor) Execute(ctx context.Context, job *models.Job) error {
	var meta dto.DataSourceSyncMetadata
	if len(job.Metadata) > 0 {
		if err := json.Unmarshal(job.Metadata, &meta); err != nil {
			return fmt.Errorf("unmarshal sync metadata: %w", err)
		}
	}

	if e.SyncFunc != nil {
		return e.SyncFunc(ctx, job.OwnerKey, meta)
	}

	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	e.log.Info("synced data source",
		slog.String("integration_id", job.OwnerKey),
		slog.String("provider_type", meta.ProviderType))
	return nil
}

// GraphEmbeddingExecutor generates the embedding for one graph object. The
// embedding API call sits behind EmbedFunc.
type GraphEmbeddingExecutor struct {
	log       *slog.Logger
	EmbedFunc func(ctx context.Context, objectID string) error
}

func NewGraphEmbeddingExecutor(log *slog.Logger) *GraphEmbeddingExecutor {
	return &GraphEmbeddingExecutor{log: log.With(slog.String("scope", "worker.graph_embedding"))}
}

func (e *GraphEmbeddingExecutor) Execute(ctx context.Context, job *models.Job) error {
	if e.EmbedFunc != nil {
		return e.EmbedFunc(ctx, job.OwnerKey)
	}

	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	e.log.Info("generated embedding", slog.String("object_id", job.OwnerKey))
	return nil
}
