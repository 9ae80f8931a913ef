package extract

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"gazetteer/internal/archiver"
	"gazetteer/internal/assetstore"
	"gazetteer/internal/catalog"
	"gazetteer/internal/config"
	"gazetteer/internal/identity"
	"gazetteer/internal/logging"
	"gazetteer/internal/services"
)

// GPSSourceDerived marks location coordinates backfilled from extracted
// media rather than entered by an operator.
const GPSSourceDerived = "derived-from-media"

// Extractor promotes media out of archived snapshots into the catalog.
type Extractor struct {
	store    *catalog.Store
	uploader assetstore.Uploader
	cfg      *config.Config
	logger   *slog.Logger
	readMeta func(path string) ImageMeta
}

// Option adjusts extractor construction.
type Option func(*Extractor)

// WithImageMetaReader overrides how image dimensions and GPS tags are read.
func WithImageMetaReader(reader func(path string) ImageMeta) Option {
	return func(e *Extractor) {
		if reader != nil {
			e.readMeta = reader
		}
	}
}

// New constructs a media extractor.
func New(store *catalog.Store, uploader assetstore.Uploader, cfg *config.Config, logger *slog.Logger, opts ...Option) *Extractor {
	extractor := &Extractor{
		store:    store,
		uploader: uploader,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "media-extractor"),
		readMeta: ReadImageMeta,
	}
	for _, opt := range opts {
		opt(extractor)
	}
	return extractor
}

// PassSummary reports the outcome of one extraction pass.
type PassSummary struct {
	Tasks            int
	MissingSnapshots int
	Scanned          int
	Promoted         int
	Duplicates       int
	Uploaded         int
	UploadFailures   int
}

// RunOnce performs a single extraction pass over up to a batch of archived
// tasks, oldest first. The pass is idempotent: content already promoted is
// recognized by fingerprint and skipped, and the per-task extracted counter
// only grows by what this pass actually inserted.
func (e *Extractor) RunOnce(ctx context.Context) (PassSummary, error) {
	summary := PassSummary{}
	tasks, err := e.store.TasksByStatus(ctx, catalog.StatusArchiving, e.cfg.Workflow.BatchSize)
	if err != nil {
		return summary, services.Wrap(services.ErrStore, "extract", "list archived tasks", "", err)
	}
	summary.Tasks = len(tasks)
	if len(tasks) == 0 {
		e.logger.Debug("no archived tasks")
		return summary, nil
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := e.processTask(ctx, task, &summary); err != nil {
			return summary, err
		}
	}

	e.logger.Info("pass complete",
		logging.Int("tasks", summary.Tasks),
		logging.Int("scanned", summary.Scanned),
		logging.Int("promoted", summary.Promoted),
		logging.Int("duplicates", summary.Duplicates),
		logging.Int("uploaded", summary.Uploaded),
		logging.Int("missing_snapshots", summary.MissingSnapshots),
	)
	return summary, nil
}

func (e *Extractor) processTask(ctx context.Context, task *catalog.Task, summary *PassSummary) error {
	taskCtx := services.WithTaskID(ctx, task.ID)
	taskCtx = services.WithStage(taskCtx, "extract")
	taskCtx = services.WithRequestID(taskCtx, uuid.NewString())
	logger := logging.WithContext(taskCtx, e.logger)

	dir := archiver.SnapshotDir(e.cfg.Paths.ArchiveRoot, task.SnapshotID)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		// The task stays archiving so the snapshot can reappear (restored
		// archive volume, replayed capture) and be extracted later.
		summary.MissingSnapshots++
		logger.Warn("snapshot directory missing",
			logging.String("snapshot_id", task.SnapshotID),
			logging.String("path", dir),
			logging.Alert("snapshot-missing"),
		)
		return nil
	}

	promoted := 0
	pageSeen := false
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk snapshot", logging.String("path", path), logging.Error(err))
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if ctxErr := taskCtx.Err(); ctxErr != nil {
			return ctxErr
		}

		if !pageSeen && IsPage(entry.Name()) {
			if info, parseErr := ParsePage(path); parseErr == nil && info.Title != "" {
				pageSeen = true
				if err := e.store.SetTaskPageInfo(taskCtx, task.ID, info.Title, info.Description); err != nil {
					return services.Wrap(services.ErrStore, "extract", "set page info", "", err)
				}
				logger.Debug("page info recorded",
					logging.String("title", info.Title),
					logging.Int("media_refs", info.MediaRefs),
				)
			}
			return nil
		}

		kind, ok := Classify(entry.Name())
		if !ok {
			return nil
		}
		summary.Scanned++

		inserted, err := e.promoteFile(taskCtx, logger, task, path, kind, summary)
		if err != nil {
			return err
		}
		if inserted {
			promoted++
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	if err := e.store.IncrementExtracted(taskCtx, task.ID, promoted); err != nil {
		return services.Wrap(services.ErrStore, "extract", "increment extracted count", "", err)
	}
	if promoted > 0 {
		logger.Info("snapshot extracted",
			logging.Int("promoted", promoted),
			logging.String("snapshot_id", task.SnapshotID),
		)
	}
	return nil
}

// promoteFile fingerprints, uploads, and catalogs one candidate file. A
// false return with nil error means the file was skipped (duplicate or
// unreadable), which never aborts the pass.
func (e *Extractor) promoteFile(ctx context.Context, logger *slog.Logger, task *catalog.Task, path string, kind catalog.MediaKind, summary *PassSummary) (bool, error) {
	fingerprint, err := identity.Content(path, identity.FullContentLength)
	if err != nil {
		logger.Warn("fingerprint file", logging.String("path", path), logging.Error(err))
		return false, nil
	}

	existing, err := e.store.FindMediaByFingerprint(ctx, kind, fingerprint)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "extract", "dedup lookup", "", err)
	}
	if existing != nil {
		summary.Duplicates++
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("stat file", logging.String("path", path), logging.Error(err))
		return false, nil
	}

	media := &catalog.Media{
		LocationID:         task.LocationID,
		Kind:               kind,
		ContentFingerprint: fingerprint,
		FileName:           filepath.Base(path),
		SizeBytes:          info.Size(),
		SourceTaskID:       task.ID,
	}
	if kind == catalog.KindImage {
		meta := e.readMeta(path)
		media.Width = meta.Width
		media.Height = meta.Height
		media.GPSLat = meta.GPSLat
		media.GPSLon = meta.GPSLon
	}

	if e.uploader != nil && e.uploader.Enabled() {
		assetID, uploadErr := e.uploader.Upload(ctx, path)
		switch {
		case uploadErr == nil:
			media.AssetID = assetID
			summary.Uploaded++
		case errors.Is(uploadErr, services.ErrUnavailable):
			// Asset store outage: catalog the row without an asset
			// reference rather than stall extraction behind the outage.
			summary.UploadFailures++
			logger.Warn("asset store unavailable, cataloging without asset id",
				logging.String("path", path),
				logging.Error(uploadErr),
			)
		default:
			// Any other upload failure is per-file: skip it so a later
			// pass can retry the upload before the row is cataloged.
			summary.UploadFailures++
			logger.Warn("asset upload failed, skipping file",
				logging.String("path", path),
				logging.Error(uploadErr),
			)
			return false, nil
		}
	}

	stored, err := e.store.InsertMedia(ctx, media)
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicateMedia) {
			summary.Duplicates++
			return false, nil
		}
		return false, services.Wrap(services.ErrStore, "extract", "insert media", "", err)
	}
	summary.Promoted++

	if stored.HasGPS() {
		updated, err := e.store.BackfillLocationGPS(ctx, task.LocationID, *stored.GPSLat, *stored.GPSLon, GPSSourceDerived)
		if err != nil {
			return true, services.Wrap(services.ErrStore, "extract", "backfill gps", "", err)
		}
		if updated {
			logger.Info("location coordinates derived from media",
				logging.String("media_id", stored.ID),
				logging.Float64("lat", *stored.GPSLat),
				logging.Float64("lon", *stored.GPSLon),
			)
		}
	}
	return true, nil
}
