package archive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gazetteer/internal/archiver"
	"gazetteer/internal/catalog"
	"gazetteer/internal/config"
	"gazetteer/internal/logging"
	"gazetteer/internal/services"
)

// Worker claims pending capture tasks and archives them one at a time.
type Worker struct {
	store  *catalog.Store
	client archiver.Archiver
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an archive worker.
func New(store *catalog.Store, client archiver.Archiver, cfg *config.Config, logger *slog.Logger) *Worker {
	return &Worker{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "archive-worker"),
	}
}

// PassSummary reports the outcome of one archive pass.
type PassSummary struct {
	Claimed  int
	Archived int
	Retried  int
	Failed   int
}

// RunOnce performs a single archive pass. Capture failures are recorded on
// the task and never abort the pass; catalog store failures do, tagged so
// the caller can exit nonzero.
func (w *Worker) RunOnce(ctx context.Context) (PassSummary, error) {
	summary := PassSummary{}
	lease := time.Duration(w.cfg.Workflow.ClaimLeaseSeconds) * time.Second
	tasks, err := w.store.ClaimPending(ctx, w.cfg.Workflow.BatchSize, lease)
	if err != nil {
		return summary, services.Wrap(services.ErrStore, "archive", "claim pending", "", err)
	}
	summary.Claimed = len(tasks)
	if len(tasks) == 0 {
		w.logger.Debug("no pending tasks")
		return summary, nil
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			w.releaseRemaining(task.ID)
			return summary, err
		}
		if err := w.processTask(ctx, task, &summary); err != nil {
			return summary, err
		}
	}

	w.logger.Info("pass complete",
		logging.Int("claimed", summary.Claimed),
		logging.Int("archived", summary.Archived),
		logging.Int("retried", summary.Retried),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (w *Worker) processTask(ctx context.Context, task *catalog.Task, summary *PassSummary) error {
	taskCtx := services.WithTaskID(ctx, task.ID)
	taskCtx = services.WithStage(taskCtx, "archive")
	taskCtx = services.WithRequestID(taskCtx, uuid.NewString())
	logger := logging.WithContext(taskCtx, w.logger)

	logger.Info("capturing", logging.String("url", task.URL))
	snapshotID, err := w.client.Capture(taskCtx, task.URL)
	if err == nil {
		if err := w.store.MarkArchiving(taskCtx, task.ID, snapshotID); err != nil {
			return services.Wrap(services.ErrStore, "archive", "mark archiving", "", err)
		}
		summary.Archived++
		logger.Info("archived", logging.String("snapshot_id", snapshotID))
		return nil
	}

	if errors.Is(err, context.Canceled) {
		w.releaseRemaining(task.ID)
		return err
	}

	updated, storeErr := w.store.RecordCaptureFailure(taskCtx, task.ID, w.cfg.Workflow.MaxRetries)
	if storeErr != nil {
		return services.Wrap(services.ErrStore, "archive", "record capture failure", "", storeErr)
	}
	if updated.Status == catalog.StatusFailed {
		summary.Failed++
		logger.Error("capture failed permanently",
			logging.Error(err),
			logging.Int("retry_count", updated.RetryCount),
		)
		return nil
	}
	summary.Retried++
	logger.Warn("capture failed, will retry",
		logging.Error(err),
		logging.Int("retry_count", updated.RetryCount),
		logging.Int("max_retries", w.cfg.Workflow.MaxRetries),
	)
	return nil
}

// releaseRemaining clears a claim when shutdown interrupts a pass. Best
// effort: the lease expires on its own either way.
func (w *Worker) releaseRemaining(taskID string) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.store.ReleaseClaim(releaseCtx, taskID); err != nil {
		w.logger.Warn("release claim", logging.String(logging.FieldTaskID, taskID), logging.Error(err))
	}
}
