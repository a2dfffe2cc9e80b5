package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/emergent/jobqueue/internal/config"
	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/queue"
	"github.com/emergent/jobqueue/internal/storage/postgres"
	"github.com/emergent/jobqueue/middleware"
)

func main() {
	log.Println("Starting API...")

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

	if err := postgres.RunMigrations(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	repo := postgres.NewJobRepository(db)
	services := map[models.JobKind]queue.ServiceInterface{
		models.KindDataSourceSync: queue.NewService(repo, logger,
			models.KindDataSourceSync, queue.PolicyFromConfig(cfg.DataSourceSync)),
		models.KindGraphEmbedding: queue.NewService(repo, logger,
			models.KindGraphEmbedding, queue.PolicyFromConfig(cfg.GraphEmbedding)),
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	queue.NewHandler(services).Register(r)

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	if err := r.Run(addr); err != nil {
		log.Fatal("Server failed:", err)
	}
}
