package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gazetteer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ArchiveRoot = filepath.Join(base, "archive")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.AssetStore.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAssetStore enables the asset store against the provided base URL.
func WithAssetStore(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.AssetStore.Enabled = true
		b.cfg.AssetStore.URL = url
	}
}

// WithArchiverBinary overrides the archiver executable on the test config.
func WithArchiverBinary(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archiver.Binary = path
	}
}

// WithMaxRetries overrides the capture retry budget on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxRetries = n
	}
}

// WithStubbedArchiver writes a stub archiver executable that exits zero and
// points the config at it.
func WithStubbedArchiver() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "monolith")
		if err := os.WriteFile(target, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			b.t.Fatalf("write stub archiver: %v", err)
		}
		b.cfg.Archiver.Binary = target
	}
}
