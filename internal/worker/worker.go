package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MaFalana/HWC-POTREE-API/internal/config"
	"github.com/MaFalana/HWC-POTREE-API/internal/logging"
	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
	"github.com/MaFalana/HWC-POTREE-API/internal/services"
)

// Processor runs the conversion pipeline for one claimed job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Worker is the claim-process loop a potreed daemon runs until stopped.
type Worker struct {
	cfg       *config.Config
	store     *queue.Store
	processor Processor
	reaper    *Reaper
	logger    *slog.Logger
}

// New builds a worker over a job store, processor, and reaper.
func New(cfg *config.Config, store *queue.Store, processor Processor, reaper *Reaper, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:       cfg,
		store:     store,
		processor: processor,
		reaper:    reaper,
		logger:    logging.NewComponentLogger(logger, "worker"),
	}
}

// Run loops until ctx is canceled. A claimed job is processed to its terminal
// state before the loop observes cancellation; stop is cooperative at
// iteration boundaries only.
func (w *Worker) Run(ctx context.Context) error {
	pollInterval := time.Duration(w.cfg.Worker.PollInterval) * time.Second
	cleanupInterval := time.Duration(w.cfg.Worker.CleanupInterval) * time.Second

	w.logger.Info("worker started",
		logging.Duration("poll_interval", pollInterval),
		logging.Duration("cleanup_interval", cleanupInterval))

	// The first sweep runs unconditionally so restarts clear anything a
	// previous process left behind.
	w.reaper.Sweep(ctx)
	lastCleanup := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		default:
		}

		job, err := w.store.ClaimNext(ctx)
		if err != nil {
			w.logger.Error("claim failed", logging.Error(err))
			w.sleep(ctx, pollInterval)
			continue
		}

		if job != nil {
			runCtx := services.WithRequestID(ctx, uuid.NewString())
			runLogger := logging.WithContext(services.WithJobID(runCtx, job.ID), w.logger)
			runLogger.Info("processing job", logging.String(logging.FieldProjectID, job.ProjectID))

			if err := w.processor.Process(runCtx, job); err != nil {
				// The job is already marked failed; this is for the daemon log.
				runLogger.Error("job processing failed", logging.Error(err))
			}

			if time.Since(lastCleanup) >= cleanupInterval {
				w.reaper.Sweep(ctx)
				lastCleanup = time.Now()
			}
			// Re-loop immediately: more work may be queued.
			continue
		}

		w.sleep(ctx, pollInterval)
	}
}

// sleep waits for the poll interval or cancellation, whichever comes first.
func (w *Worker) sleep(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
