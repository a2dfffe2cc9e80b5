package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emergent/jobqueue/internal/config"
	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/pool"
	"github.com/emergent/jobqueue/internal/queue"
	"github.com/emergent/jobqueue/internal/storage/postgres"
	"github.com/emergent/jobqueue/internal/worker"
)

func main() {
	log.Println("Starting worker...")

	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to load db config:", err)
	}

	cfg, err := config.LoadFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to load queue config:", err)
	}

	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		log.Fatal("Connection failed:", err)
	}

	repo := postgres.NewJobRepository(db)

	syncPolicy := queue.PolicyFromConfig(cfg.DataSourceSync)
	embedPolicy := queue.PolicyFromConfig(cfg.GraphEmbedding)

	queues := map[models.JobKind]pool.Queue{
		models.KindDataSourceSync: {
			Service:  queue.NewService(repo, logger, models.KindDataSourceSync, syncPolicy),
			Executor: worker.NewDataSourceSyncExecutor(logger),
			Policy:   syncPolicy,
		},
		models.KindGraphEmbedding: {
			Service:  queue.NewService(repo, logger, models.KindGraphEmbedding, embedPolicy),
			Executor: worker.NewGraphEmbeddingExecutor(logger),
			Policy:   embedPolicy,
		},
	}

	workerPool := pool.NewWorkerPool(cfg, logger, queues)
	workerPool.Start()
	log.Println("Worker pool active. Press Ctrl+C to stop.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	workerPool.Stop()
	log.Println("Shutdown complete.")
}
