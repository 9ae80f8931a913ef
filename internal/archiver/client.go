package archiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gazetteer/internal/config"
	"gazetteer/internal/identity"
	"gazetteer/internal/services"
)

// Archiver defines the behaviour required by the archive worker.
type Archiver interface {
	Capture(ctx context.Context, url string) (snapshotID string, err error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps capture tool CLI interactions.
type Client struct {
	binary         string
	args           []string
	archiveRoot    string
	captureTimeout time.Duration
	exec           Executor
}

// New constructs a capture client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	binary := strings.TrimSpace(cfg.Archiver.Binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "archive", "new client", "archiver binary required", nil)
	}
	if strings.TrimSpace(cfg.Paths.ArchiveRoot) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "archive", "new client", "archive root required", nil)
	}
	client := &Client{
		binary:         binary,
		args:           append([]string(nil), cfg.Archiver.Args...),
		archiveRoot:    cfg.Paths.ArchiveRoot,
		captureTimeout: time.Duration(cfg.Archiver.CaptureTimeout) * time.Second,
		exec:           commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Capture runs the capture tool against a URL and returns the snapshot
// identifier on success. The snapshot directory is created before the tool
// runs and removed again when the capture fails, so a snapshot directory
// exists exactly when a snapshot identifier was returned.
func (c *Client) Capture(ctx context.Context, url string) (string, error) {
	snapshotID, err := identity.Random(identity.RandomLength)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "archive", "capture", "mint snapshot id", err)
	}
	dest := filepath.Join(c.archiveRoot, snapshotID)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "archive", "capture", "create snapshot dir", err)
	}

	captureCtx := ctx
	if c.captureTimeout > 0 {
		var cancel context.CancelFunc
		captureCtx, cancel = context.WithTimeout(ctx, c.captureTimeout)
		defer cancel()
	}

	args := expandArgs(c.args, url, dest)
	if err := c.exec.Run(captureCtx, c.binary, args, nil); err != nil {
		_ = os.RemoveAll(dest)
		return "", classifyRunError(captureCtx, err)
	}

	populated, err := dirHasFiles(dest)
	if err != nil {
		_ = os.RemoveAll(dest)
		return "", services.Wrap(services.ErrTransient, "archive", "capture", "inspect snapshot dir", err)
	}
	if !populated {
		_ = os.RemoveAll(dest)
		return "", services.Wrap(services.ErrExternalTool, "archive", "capture", "capture tool produced no output", nil)
	}
	return snapshotID, nil
}

// SnapshotDir returns the directory a snapshot identifier maps to.
func SnapshotDir(archiveRoot, snapshotID string) string {
	return filepath.Join(archiveRoot, snapshotID)
}

func expandArgs(template []string, url, dest string) []string {
	args := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, "{url}", url)
		arg = strings.ReplaceAll(arg, "{dest}", dest)
		args[i] = arg
	}
	return args
}

func classifyRunError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "archive", "capture", "capture tool timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrConfiguration, "archive", "capture", "capture tool not found", err)
	}
	return services.Wrap(services.ErrExternalTool, "archive", "capture", "capture tool failed", err)
}

func dirHasFiles(dir string) (bool, error) {
	found := false
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found, err
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
