package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"gazetteer/internal/archive"
	"gazetteer/internal/config"
	"gazetteer/internal/extract"
	"gazetteer/internal/logging"
	"gazetteer/internal/services"
)

// Runner drives the pipeline: an archive pass followed by an extract pass,
// repeated on the poll interval when running continuously.
type Runner struct {
	cfg       *config.Config
	worker    *archive.Worker
	extractor *extract.Extractor
	logger    *slog.Logger
	lock      *flock.Flock
}

// New constructs a pipeline runner.
func New(cfg *config.Config, worker *archive.Worker, extractor *extract.Extractor, logger *slog.Logger) (*Runner, error) {
	if cfg == nil || worker == nil || extractor == nil {
		return nil, errors.New("runner requires config, archive worker, and extractor")
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "gazetteer.lock")
	return &Runner{
		cfg:       cfg,
		worker:    worker,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "runner"),
		lock:      flock.New(lockPath),
	}, nil
}

// RunOnce performs one archive pass and one extract pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	if _, err := r.worker.RunOnce(ctx); err != nil {
		return err
	}
	if _, err := r.extractor.RunOnce(ctx); err != nil {
		return err
	}
	return nil
}

// Run executes passes continuously until the context is canceled. Store
// failures do not stop the loop; they are logged and retried after the error
// interval. Only one runner may operate on a data directory at a time.
func (r *Runner) Run(ctx context.Context) error {
	acquired, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another gazetteer instance holds %s", r.lock.Path())
	}
	defer func() {
		_ = r.lock.Unlock()
	}()

	pollInterval := time.Duration(r.cfg.Workflow.PollInterval) * time.Second
	errorInterval := time.Duration(r.cfg.Workflow.ErrorRetryInterval) * time.Second
	r.logger.Info("pipeline started",
		logging.Duration("poll_interval", pollInterval),
		logging.String("lock", r.lock.Path()),
	)

	for {
		wait := pollInterval
		if err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.logger.Info("pipeline stopped")
				return err
			}
			wait = errorInterval
			r.logger.Error("pass failed",
				logging.Error(err),
				logging.Bool("store_failure", services.IsStoreFailure(err)),
				logging.Duration("retry_in", wait),
			)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("pipeline stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}
