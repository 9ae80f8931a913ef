package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"gazetteer/internal/archive"
	"gazetteer/internal/catalog"
	"gazetteer/internal/extract"
	"gazetteer/internal/logging"
	"gazetteer/internal/testsupport"
	"gazetteer/internal/workflow"
)

type snapshotArchiver struct {
	root string
	next int
}

func (s *snapshotArchiver) Capture(ctx context.Context, url string) (string, error) {
	s.next++
	id := fmt.Sprintf("snaprun%05d", s.next)
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	content := []byte("photo for " + url)
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), content, 0o644); err != nil {
		return "", err
	}
	return id, nil
}

func TestRunOnceArchivesThenExtracts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	location := testsupport.NewLocation(t, store, "Town Hall", "Springfield", "civic")
	task := testsupport.NewTask(t, store, location.ID, "https://example.org/hall")

	client := &snapshotArchiver{root: cfg.Paths.ArchiveRoot}
	worker := archive.New(store, client, cfg, logging.NewNop())
	extractor := extract.New(store, nil, cfg, logging.NewNop())
	runner, err := workflow.New(cfg, worker, extractor, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	updated, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if updated.Status != catalog.StatusArchiving {
		t.Fatalf("status = %s, want archiving", updated.Status)
	}
	if updated.ExtractedCount != 1 {
		t.Fatalf("extracted count = %d, want 1", updated.ExtractedCount)
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	worker := archive.New(store, &snapshotArchiver{root: cfg.Paths.ArchiveRoot}, cfg, logging.NewNop())
	extractor := extract.New(store, nil, cfg, logging.NewNop())
	runner, err := workflow.New(cfg, worker, extractor, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	holder := flock.New(filepath.Join(cfg.Paths.DataDir, "gazetteer.lock"))
	locked, err := holder.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !locked {
		t.Fatal("test could not take the lock")
	}
	defer holder.Unlock()

	err = runner.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "another gazetteer instance") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)

	worker := archive.New(store, &snapshotArchiver{root: cfg.Paths.ArchiveRoot}, cfg, logging.NewNop())
	extractor := extract.New(store, nil, cfg, logging.NewNop())
	runner, err := workflow.New(cfg, worker, extractor, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}
