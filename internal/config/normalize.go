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
	c.normalizeStorage()
	c.normalizeWorker()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		if value, ok := os.LookupEnv("POTREED_BUCKET"); ok {
			c.Storage.Bucket = strings.TrimSpace(value)
		}
	}
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	c.Storage.CredentialsFile = strings.TrimSpace(c.Storage.CredentialsFile)
	if c.Storage.URLTTLHours <= 0 {
		c.Storage.URLTTLHours = defaultURLTTLHours
	}
}

func (c *Config) normalizeWorker() {
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = defaultPollInterval
	}
	if c.Worker.CleanupInterval <= 0 {
		c.Worker.CleanupInterval = defaultCleanupInterval
	}
	if c.Worker.RetentionHours <= 0 {
		c.Worker.RetentionHours = defaultRetentionHours
	}
	if c.Worker.StagingMaxAgeHours <= 0 {
		c.Worker.StagingMaxAgeHours = defaultStagingMaxAgeHours
	}
}

func (c *Config) normalizeTools() {
	c.Tools.PDALBinary = strings.TrimSpace(c.Tools.PDALBinary)
	if c.Tools.PDALBinary == "" {
		c.Tools.PDALBinary = defaultPDALBinary
	}
	c.Tools.PotreeConverter = strings.TrimSpace(c.Tools.PotreeConverter)
	if c.Tools.PotreeConverter == "" {
		c.Tools.PotreeConverter = defaultPotreeConverter
	}
	if c.Tools.InfoTimeout <= 0 {
		c.Tools.InfoTimeout = defaultInfoTimeout
	}
	if c.Tools.ConvertTimeout <= 0 {
		c.Tools.ConvertTimeout = defaultConvertTimeout
	}
	if c.Tools.UploadConcurrency <= 0 {
		c.Tools.UploadConcurrency = defaultUploadConcurrency
	}
	if c.Tools.ThumbnailSize <= 0 {
		c.Tools.ThumbnailSize = defaultThumbnailSize
	}
	if c.Tools.ThumbnailPointBudget <= 0 {
		c.Tools.ThumbnailPointBudget = defaultThumbnailPointBudget
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
