package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.Bucket == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/potreed/config.toml"
			}
			return fmt.Errorf("storage.bucket is required for the gcs backend. Set POTREED_BUCKET env var or edit %s (create with 'potreed config init')", defaultPath)
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected gcs or memory)", c.Storage.Backend)
	}
	if c.Storage.URLTTLHours <= 0 {
		return errors.New("storage.url_ttl_hours must be positive")
	}
	return nil
}

func (c *Config) validateWorker() error {
	return ensurePositiveMap(map[string]int{
		"worker.poll_interval":         c.Worker.PollInterval,
		"worker.cleanup_interval":      c.Worker.CleanupInterval,
		"worker.retention_hours":       c.Worker.RetentionHours,
		"worker.staging_max_age_hours": c.Worker.StagingMaxAgeHours,
	})
}

func (c *Config) validateTools() error {
	if c.Tools.PDALBinary == "" {
		return errors.New("tools.pdal_binary must be set")
	}
	if c.Tools.PotreeConverter == "" {
		return errors.New("tools.potree_converter_binary must be set")
	}
	return ensurePositiveMap(map[string]int{
		"tools.info_timeout":           c.Tools.InfoTimeout,
		"tools.convert_timeout":        c.Tools.ConvertTimeout,
		"tools.upload_concurrency":     c.Tools.UploadConcurrency,
		"tools.thumbnail_size":         c.Tools.ThumbnailSize,
		"tools.thumbnail_point_budget": c.Tools.ThumbnailPointBudget,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
