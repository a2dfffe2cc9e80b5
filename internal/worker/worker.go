package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/queue"
)

// Executor performs the external work for one claimed job: syncing a data
// source, generating an embedding. It runs between claim and outcome
// report, outside the engine's critical section, and must tolerate
// duplicate execution (the engine is at-least-once).
type Executor interface {
	Execute(ctx context.Context, job *models.Job) error
}

// Worker polls one queue kind, executes claimed jobs, and reports the
// outcome back to the engine.
type Worker struct {
	ID    int
	svc   queue.ServiceInterface
	exec  Executor
	batch int
	base  time.Duration
	quit  chan struct{}
	log   *slog.Logger
}

func NewWorker(id int, svc queue.ServiceInterface, exec Executor, batch int, pollInterval time.Duration, log *slog.Logger) *Worker {
	if batch < 1 {
		batch = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		ID:    id,
		svc:   svc,
		exec:  exec,
		batch: batch,
		base:  pollInterval,
		quit:  make(chan struct{}),
		log:   log.With(slog.Int("worker_id", id)),
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		currentDelay := w.base
		maxDelay := 60 * time.Second

		for {
			n := w.poll(ctx)

			if n > 0 {
				currentDelay = w.base
			} else {
				currentDelay = min(currentDelay*2, maxDelay)
			}

			select {
			case <-time.After(currentDelay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// poll claims one batch and processes it, returning how many jobs ran.
func (w *Worker) poll(ctx context.Context) int {
	jobs, err := w.svc.Dequeue(ctx, w.batch)
	if err != nil {
		w.log.Error("dequeue failed", slog.String("error", err.Error()))
		return 0
	}

	for i := range jobs {
		w.process(ctx, &jobs[i])
	}
	return len(jobs)
}

func (w *Worker) process(ctx context.Context, job *models.Job) {
	if err := w.exec.Execute(ctx, job); err != nil {
		willRetry, markErr := w.svc.MarkFailed(ctx, job.ID, err)
		if markErr != nil {
			w.log.Error("mark failed errored",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()))
			return
		}
		w.log.Warn("job failed",
			slog.String("job_id", job.ID),
			slog.Bool("will_retry", willRetry),
			slog.String("error", err.Error()))
		return
	}

	if err := w.svc.MarkCompleted(ctx, job.ID); err != nil {
		w.log.Error("mark completed errored",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
}

func (w *Worker) Stop() { close(w.quit) }
