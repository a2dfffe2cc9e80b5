package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/emergent/jobqueue/internal/config"
	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/queue"
	"github.com/emergent/jobqueue/internal/worker"
)

// Queue pairs an engine service with the executor that performs its work.
type Queue struct {
	Service  queue.ServiceInterface
	Executor worker.Executor
	Policy   queue.Policy
}

// WorkerPool runs the polling workers for every registered queue kind plus
// a janitor goroutine that reaps stale jobs and purges aged-out dead
// letters.
type WorkerPool struct {
	workers []*worker.Worker
	queues  map[models.JobKind]Queue
	cfg     *config.Config
	log     *slog.Logger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorkerPool(cfg *config.Config, log *slog.Logger, queues map[models.JobKind]Queue) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		queues: queues,
		cfg:    cfg,
		log:    log.With(slog.String("scope", "pool")),
		ctx:    ctx,
		cancel: cancel,
	}

	id := 1
	for kind, q := range queues {
		for i := 0; i < cfg.WorkerCount; i++ {
			p.workers = append(p.workers, worker.NewWorker(
				id, q.Service, q.Executor, q.Policy.WorkerBatch, q.Policy.WorkerInterval,
				log.With(slog.String("kind", string(kind)))))
			id++
		}
	}
	return p
}

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	p.wg.Add(1)
	go p.janitor()

	p.log.Info("worker pool started",
		slog.Int("workers", len(p.workers)),
		slog.Int("queues", len(p.queues)))
}

// janitor periodically recovers stale jobs and purges old dead letters for
// every queue. Both operations are idempotent and safe to run alongside
// live workers.
func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for kind, q := range p.queues {
				recovered, err := q.Service.RecoverStaleJobs(p.ctx, 0)
				if err != nil {
					p.log.Error("stale job recovery failed",
						slog.String("kind", string(kind)),
						slog.String("error", err.Error()))
				} else if recovered > 0 {
					p.log.Warn("recovered stale jobs",
						slog.String("kind", string(kind)),
						slog.Int("count", recovered))
				}

				if _, err := q.Service.PurgeDeadLetterJobs(p.ctx, p.cfg.PurgeOlderThan); err != nil {
					p.log.Error("dead letter purge failed",
						slog.String("kind", string(kind)),
						slog.String("error", err.Error()))
				}
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) Stop() {
	p.cancel()
	for _, w := range p.workers {
		w.Stop()
	}
	p.wg.Wait()
}
