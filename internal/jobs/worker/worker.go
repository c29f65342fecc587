package worker

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/jobs/runtime"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/envutil"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval: envutil.Seconds("WORKER_POLL_SECONDS", 1),
		MaxAttempts:  envutil.Int("WORKER_MAX_ATTEMPTS", 5),
		RetryDelay:   envutil.Seconds("WORKER_RETRY_DELAY_SECONDS", 30),
		StaleRunning: envutil.Seconds("WORKER_STALE_RUNNING_SECONDS", 30*60),
	}
}

// Worker polls job_run and runs claimed jobs. It is the execution path when
// Temporal is not configured.
type Worker struct {
	log  *logger.Logger
	repo repos.JobRunRepo
	exec *runtime.Executor
	cfg  Config
	wg   sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, exec *runtime.Executor, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Worker{
		log:  baseLog.With("component", "JobWorker"),
		repo: repo,
		exec: exec,
		cfg:  cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.exec.Registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop has returned after ctx is done.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain everything runnable before waiting for the next tick.
			for ctx.Err() == nil && w.RunOnce(ctx, workerID) {
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job ran.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}
	w.log.Debug("Claimed job", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts)
	jc := w.exec.Execute(ctx, job)
	w.log.Info("Job finished", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "status", jc.Job.Status)
	return true
}
