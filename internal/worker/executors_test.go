package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/emergent/jobqueue/internal/dto"
	"github.com/emergent/jobqueue/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDataSourceSyncExecutorPassesMetadata(t *testing.T) {
	var gotID string
	var gotMeta dto.DataSourceSyncMetadata

	e := NewDataSourceSyncExecutor(discardLogger())
	e.SyncFunc = func(_ context.Context, integrationID string, meta dto.DataSourceSyncMetadata) error {
		gotID = integrationID
		gotMeta = meta
		return nil
	}

	job := &models.Job{
		OwnerKey: "integration-1",
		Metadata: datatypes.JSON(`{"provider_type":"gmail","source_type":"email","trigger_type":"manual"}`),
	}

	require.NoError(t, e.Execute(context.Background(), job))
	assert.Equal(t, "integration-1", gotID)
	assert.Equal(t, "gmail", gotMeta.ProviderType)
	assert.Equal(t, "manual", gotMeta.TriggerType)
}

func TestDataSourceSyncExecutorRejectsBadMetadata(t *testing.T) {
	e := NewDataSourceSyncExecutor(discardLogger())
	e.SyncFunc = func(context.Context, string, dto.DataSourceSyncMetadata) error {
		t.Fatal("sync must not run with unparseable metadata")
		return nil
	}

	job := &models.Job{OwnerKey: "integration-1", Metadata: datatypes.JSON(`{broken`)}
	assert.Error(t, e.Execute(context.Background(), job))
}

func TestGraphEmbeddingExecutorPropagatesFailure(t *testing.T) {
	wantErr := errors.New("embedding api unavailable")

	e := NewGraphEmbeddingExecutor(discardLogger())
	e.EmbedFunc = func(_ context.Context, objectID string) error {
		assert.Equal(t, "obj-1", objectID)
		return wantErr
	}

	err := e.Execute(context.Background(), &models.Job{OwnerKey: "obj-1"})
	assert.ErrorIs(t, err, wantErr)
}
