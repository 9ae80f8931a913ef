package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArchiver()
	c.normalizeAssetStore()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveRoot) == "" {
		c.Paths.ArchiveRoot = defaultArchiveRoot
	}
	if c.Paths.ArchiveRoot, err = expandPath(c.Paths.ArchiveRoot); err != nil {
		return fmt.Errorf("paths.archive_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArchiver() {
	c.Archiver.Binary = strings.TrimSpace(c.Archiver.Binary)
	if c.Archiver.Binary == "" {
		c.Archiver.Binary = defaultArchiverBinary
	}
	if len(c.Archiver.Args) == 0 {
		c.Archiver.Args = Default().Archiver.Args
	}
	if c.Archiver.CaptureTimeout <= 0 {
		c.Archiver.CaptureTimeout = defaultCaptureTimeout
	}
}

func (c *Config) normalizeAssetStore() {
	c.AssetStore.URL = strings.TrimRight(strings.TrimSpace(c.AssetStore.URL), "/")
	c.AssetStore.Token = strings.TrimSpace(c.AssetStore.Token)
	if c.AssetStore.Token == "" {
		if value, ok := os.LookupEnv("GAZETTEER_ASSET_TOKEN"); ok {
			c.AssetStore.Token = strings.TrimSpace(value)
		}
	}
	if c.AssetStore.RequestTimeout <= 0 {
		c.AssetStore.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
