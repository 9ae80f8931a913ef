package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateArchiver(); err != nil {
		return err
	}
	if err := c.validateAssetStore(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateArchiver() error {
	if c.Archiver.Binary == "" {
		return errors.New("archiver.binary must be set")
	}
	var hasURL, hasDest bool
	for _, arg := range c.Archiver.Args {
		if strings.Contains(arg, "{url}") {
			hasURL = true
		}
		if strings.Contains(arg, "{dest}") {
			hasDest = true
		}
	}
	if !hasURL {
		return errors.New("archiver.args must contain a {url} placeholder")
	}
	if !hasDest {
		return errors.New("archiver.args must contain a {dest} placeholder")
	}
	if c.Archiver.CaptureTimeout <= 0 {
		return errors.New("archiver.capture_timeout must be positive")
	}
	return nil
}

func (c *Config) validateAssetStore() error {
	if !c.AssetStore.Enabled {
		return nil
	}
	if c.AssetStore.URL == "" {
		return errors.New("asset_store.url must be set when asset_store.enabled is true")
	}
	if !strings.HasPrefix(c.AssetStore.URL, "http://") && !strings.HasPrefix(c.AssetStore.URL, "https://") {
		return fmt.Errorf("asset_store.url must be an http(s) URL, got %q", c.AssetStore.URL)
	}
	if c.AssetStore.RequestTimeout <= 0 {
		return errors.New("asset_store.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.batch_size":           c.Workflow.BatchSize,
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.claim_lease_seconds":  c.Workflow.ClaimLeaseSeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.MaxRetries < 1 {
		return errors.New("workflow.max_retries must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
