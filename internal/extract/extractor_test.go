package extract_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gazetteer/internal/catalog"
	"gazetteer/internal/extract"
	"gazetteer/internal/logging"
	"gazetteer/internal/services"
	"gazetteer/internal/testsupport"
)

type fakeUploader struct {
	enabled bool
	err     error
	uploads []string
	nextID  int
}

func (f *fakeUploader) Enabled() bool { return f.enabled }

func (f *fakeUploader) Upload(ctx context.Context, path string) (string, error) {
	f.uploads = append(f.uploads, path)
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	return filepath.Base(path) + "-asset", nil
}

const samplePage = `<html><head><title>Town Hall, Springfield</title>
<meta name="description" content="Civic building records"></head>
<body><img src="a.jpg"><img src="b.jpg"></body></html>`

func archivedTask(t *testing.T, store *catalog.Store, locationID, url, snapshotID string) *catalog.Task {
	t.Helper()
	task := testsupport.NewTask(t, store, locationID, url)
	if err := store.MarkArchiving(context.Background(), task.ID, snapshotID); err != nil {
		t.Fatalf("MarkArchiving: %v", err)
	}
	refreshed, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	return refreshed
}

func TestRunOncePromotesAndDeduplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Town Hall", "Springfield", "civic")
	task := archivedTask(t, store, location.ID, "https://example.org/hall", "snaphall0001")

	dir := filepath.Join(cfg.Paths.ArchiveRoot, "snaphall0001")
	testsupport.WriteFile(t, filepath.Join(dir, "page.html"), []byte(samplePage))
	testsupport.WriteFile(t, filepath.Join(dir, "a.jpg"), []byte("photo bytes one"))
	testsupport.WriteFile(t, filepath.Join(dir, "assets", "b.jpg"), []byte("photo bytes one"))
	testsupport.WriteFile(t, filepath.Join(dir, "records.pdf"), []byte("pdf bytes"))
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("ignored"))

	extractor := extract.New(store, nil, cfg, logging.NewNop())
	ctx := context.Background()

	summary, err := extractor.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Tasks != 1 || summary.Scanned != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Promoted != 2 || summary.Duplicates != 1 {
		t.Fatalf("summary = %+v, want 2 promoted and 1 duplicate", summary)
	}

	updated, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if updated.ExtractedCount != 2 {
		t.Fatalf("extracted count = %d, want 2", updated.ExtractedCount)
	}
	if updated.Status != catalog.StatusArchiving {
		t.Fatalf("extraction must not change status, got %s", updated.Status)
	}
	if updated.Title != "Town Hall, Springfield" {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.Description != "Civic building records" {
		t.Fatalf("description = %q", updated.Description)
	}

	media, err := store.MediaForTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("MediaForTask: %v", err)
	}
	if len(media) != 2 {
		t.Fatalf("media rows = %d, want 2", len(media))
	}

	// A second pass finds everything already promoted.
	again, err := extractor.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if again.Promoted != 0 {
		t.Fatalf("second pass promoted %d, want 0", again.Promoted)
	}
	refetched, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if refetched.ExtractedCount != 2 {
		t.Fatalf("extracted count drifted to %d", refetched.ExtractedCount)
	}
}

func TestRunOnceSkipsMissingSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Harbor", "Portsmouth", "maritime")
	task := archivedTask(t, store, location.ID, "https://example.org/harbor", "snapgone0001")

	extractor := extract.New(store, nil, cfg, logging.NewNop())
	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.MissingSnapshots != 1 || summary.Promoted != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	updated, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if updated.Status != catalog.StatusArchiving {
		t.Fatalf("missing snapshot must not fail the task, got %s", updated.Status)
	}
}

func TestRunOnceUploadsWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Museum", "Springfield", "culture")
	task := archivedTask(t, store, location.ID, "https://example.org/museum", "snapmuse0001")

	dir := filepath.Join(cfg.Paths.ArchiveRoot, "snapmuse0001")
	testsupport.WriteFile(t, filepath.Join(dir, "exhibit.jpg"), []byte("exhibit photo"))

	uploader := &fakeUploader{enabled: true}
	extractor := extract.New(store, uploader, cfg, logging.NewNop())

	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Uploaded != 1 || summary.UploadFailures != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	media, err := store.MediaForTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("MediaForTask: %v", err)
	}
	if len(media) != 1 || media[0].AssetID != "exhibit.jpg-asset" {
		t.Fatalf("media = %+v", media)
	}
}

func TestRunOnceCatalogsWhenAssetStoreUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Depot", "Springfield", "transport")
	task := archivedTask(t, store, location.ID, "https://example.org/depot", "snapdepo0001")

	dir := filepath.Join(cfg.Paths.ArchiveRoot, "snapdepo0001")
	testsupport.WriteFile(t, filepath.Join(dir, "platform.jpg"), []byte("platform photo"))

	uploader := &fakeUploader{
		enabled: true,
		err:     services.Wrap(services.ErrUnavailable, "extract", "upload", "connection refused", nil),
	}
	extractor := extract.New(store, uploader, cfg, logging.NewNop())

	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Promoted != 1 || summary.UploadFailures != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	media, err := store.MediaForTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("MediaForTask: %v", err)
	}
	if len(media) != 1 || media[0].AssetID != "" {
		t.Fatalf("media should be cataloged without asset id: %+v", media)
	}
}

func TestRunOnceDeduplicatesAcrossTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Pier", "Portsmouth", "maritime")
	first := archivedTask(t, store, location.ID, "https://example.org/pier", "snappier0001")
	second := archivedTask(t, store, location.ID, "https://example.org/pier-history", "snappier0002")

	content := []byte("shared photo content")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ArchiveRoot, "snappier0001", "pier.jpg"), content)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ArchiveRoot, "snappier0002", "pier-copy.jpg"), content)

	extractor := extract.New(store, nil, cfg, logging.NewNop())
	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Promoted != 1 || summary.Duplicates != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	firstTask, _ := store.GetTask(context.Background(), first.ID)
	secondTask, _ := store.GetTask(context.Background(), second.ID)
	if firstTask.ExtractedCount+secondTask.ExtractedCount != 1 {
		t.Fatalf("exactly one task should own the promotion: %d + %d",
			firstTask.ExtractedCount, secondTask.ExtractedCount)
	}
}

func TestRunOnceHonorsBatchSize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.BatchSize = 1
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Quarry", "Shelbyville", "industry")
	first := archivedTask(t, store, location.ID, "https://example.org/quarry", "snapquar0001")
	second := archivedTask(t, store, location.ID, "https://example.org/quarry-face", "snapquar0002")

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ArchiveRoot, "snapquar0001", "face.jpg"), []byte("quarry face"))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ArchiveRoot, "snapquar0002", "crusher.jpg"), []byte("quarry crusher"))

	extractor := extract.New(store, nil, cfg, logging.NewNop())
	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Tasks != 1 {
		t.Fatalf("pass processed %d tasks, want 1", summary.Tasks)
	}
	if summary.Promoted != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	firstTask, _ := store.GetTask(context.Background(), first.ID)
	secondTask, _ := store.GetTask(context.Background(), second.ID)
	if firstTask.ExtractedCount != 1 || secondTask.ExtractedCount != 0 {
		t.Fatalf("oldest task first: %d + %d", firstTask.ExtractedCount, secondTask.ExtractedCount)
	}
}

func TestRunOnceBackfillsLocationGPSFromMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Grist Mill", "Springfield", "industry")
	task := archivedTask(t, store, location.ID, "https://example.org/mill", "snapmill0001")

	dir := filepath.Join(cfg.Paths.ArchiveRoot, "snapmill0001")
	testsupport.WriteFile(t, filepath.Join(dir, "mill.jpg"), []byte("mill photo"))
	testsupport.WriteFile(t, filepath.Join(dir, "wheel.jpg"), []byte("wheel photo"))

	lat, lon := 43.08, -73.78
	reader := func(path string) extract.ImageMeta {
		if filepath.Base(path) != "mill.jpg" {
			return extract.ImageMeta{Width: 640, Height: 480}
		}
		return extract.ImageMeta{Width: 800, Height: 600, GPSLat: &lat, GPSLon: &lon}
	}
	extractor := extract.New(store, nil, cfg, logging.NewNop(), extract.WithImageMetaReader(reader))

	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Promoted != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	updated, err := store.GetLocation(context.Background(), location.ID)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if !updated.HasGPS() {
		t.Fatal("location coordinates were not backfilled")
	}
	if *updated.GPSLat != lat || *updated.GPSLon != lon {
		t.Fatalf("coordinates = %v, %v", *updated.GPSLat, *updated.GPSLon)
	}
	if updated.GPSSource != "derived-from-media" {
		t.Fatalf("gps source = %q", updated.GPSSource)
	}

	media, err := store.MediaForTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("MediaForTask: %v", err)
	}
	tagged := 0
	for _, row := range media {
		if row.HasGPS() {
			tagged++
		}
	}
	if tagged != 1 {
		t.Fatalf("gps-tagged media rows = %d, want 1", tagged)
	}
}

func TestRunOnceKeepsOperatorGPS(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	operatorLat, operatorLon := 44.27, -71.3
	location, err := store.NewLocation(context.Background(), &catalog.Location{
		Name:         "Summit House",
		Jurisdiction: "Coos",
		Category:     "nature",
		GPSLat:       &operatorLat,
		GPSLon:       &operatorLon,
		GPSSource:    "operator",
	})
	if err != nil {
		t.Fatalf("NewLocation: %v", err)
	}
	archivedTask(t, store, location.ID, "https://example.org/summit", "snapsumm0001")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ArchiveRoot, "snapsumm0001", "summit.jpg"), []byte("summit photo"))

	mediaLat, mediaLon := 10.0, 20.0
	reader := func(string) extract.ImageMeta {
		return extract.ImageMeta{GPSLat: &mediaLat, GPSLon: &mediaLon}
	}
	extractor := extract.New(store, nil, cfg, logging.NewNop(), extract.WithImageMetaReader(reader))

	if _, err := extractor.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	updated, err := store.GetLocation(context.Background(), location.ID)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if *updated.GPSLat != operatorLat || *updated.GPSLon != operatorLon || updated.GPSSource != "operator" {
		t.Fatalf("operator coordinates overwritten: %+v", updated)
	}
}

func TestRunOnceSkipsFileOnFailedUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Foundry", "Springfield", "industry")
	task := archivedTask(t, store, location.ID, "https://example.org/foundry", "snapfoun0001")

	dir := filepath.Join(cfg.Paths.ArchiveRoot, "snapfoun0001")
	testsupport.WriteFile(t, filepath.Join(dir, "furnace.jpg"), []byte("furnace photo"))

	uploader := &fakeUploader{
		enabled: true,
		err:     services.Wrap(services.ErrTransient, "extract", "upload", "bad gateway", nil),
	}
	extractor := extract.New(store, uploader, cfg, logging.NewNop())

	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Promoted != 0 || summary.UploadFailures != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	media, err := store.MediaForTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("MediaForTask: %v", err)
	}
	if len(media) != 0 {
		t.Fatalf("file should be skipped until its upload succeeds: %+v", media)
	}

	// Once the upload succeeds the same file is promoted with its asset id.
	uploader.err = nil
	again, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if again.Promoted != 1 || again.Uploaded != 1 {
		t.Fatalf("summary = %+v", again)
	}
	media, err = store.MediaForTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("MediaForTask: %v", err)
	}
	if len(media) != 1 || media[0].AssetID != "furnace.jpg-asset" {
		t.Fatalf("media = %+v", media)
	}
}

func TestRunOnceIgnoresUnpromotableFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Library", "Shelbyville", "civic")
	archivedTask(t, store, location.ID, "https://example.org/library", "snaplib00001")

	dir := filepath.Join(cfg.Paths.ArchiveRoot, "snaplib00001")
	testsupport.WriteFile(t, filepath.Join(dir, "style.css"), []byte("body{}"))
	testsupport.WriteFile(t, filepath.Join(dir, "app.js"), []byte("void 0"))
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	extractor := extract.New(store, nil, cfg, logging.NewNop())
	summary, err := extractor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Scanned != 0 || summary.Promoted != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}
