package archiver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gazetteer/internal/archiver"
	"gazetteer/internal/services"
	"gazetteer/internal/testsupport"
)

type fakeExecutor struct {
	calls  int
	binary string
	args   []string
	run    func(ctx context.Context, args []string) error
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	f.calls++
	f.binary = binary
	f.args = args
	if f.run != nil {
		return f.run(ctx, args)
	}
	return nil
}

func TestCaptureCreatesPopulatedSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Archiver.Args = []string{"--output", "{dest}", "{url}"}

	exec := &fakeExecutor{
		run: func(ctx context.Context, args []string) error {
			dest := args[1]
			return os.WriteFile(filepath.Join(dest, "page.html"), []byte("<html></html>"), 0o644)
		},
	}
	client, err := archiver.New(cfg, archiver.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshotID, err := client.Capture(context.Background(), "https://example.org/page")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if snapshotID == "" {
		t.Fatal("expected snapshot id")
	}
	if exec.args[2] != "https://example.org/page" {
		t.Fatalf("url placeholder not expanded: %v", exec.args)
	}
	dir := archiver.SnapshotDir(cfg.Paths.ArchiveRoot, snapshotID)
	if _, err := os.Stat(filepath.Join(dir, "page.html")); err != nil {
		t.Fatalf("snapshot content missing: %v", err)
	}
}

func TestCaptureRemovesSnapshotOnToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &fakeExecutor{
		run: func(ctx context.Context, args []string) error {
			return errors.New("exit status 1")
		},
	}
	client, err := archiver.New(cfg, archiver.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Capture(context.Background(), "https://example.org/broken")
	if !services.IsCaptureFailure(err) {
		t.Fatalf("expected capture failure classification, got %v", err)
	}
	entries, readErr := os.ReadDir(cfg.Paths.ArchiveRoot)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		t.Fatalf("read archive root: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("failed capture left %d snapshot dirs behind", len(entries))
	}
}

func TestCaptureRejectsEmptySnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, err := archiver.New(cfg, archiver.WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Capture(context.Background(), "https://example.org/empty")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool for empty snapshot, got %v", err)
	}
}

func TestCaptureClassifiesTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Archiver.CaptureTimeout = 1
	exec := &fakeExecutor{
		run: func(ctx context.Context, args []string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	client, err := archiver.New(cfg, archiver.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Capture(context.Background(), "https://example.org/slow")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !services.IsCaptureFailure(err) {
		t.Fatalf("timeout should classify as capture failure: %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Archiver.Binary = "  "
	if _, err := archiver.New(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
