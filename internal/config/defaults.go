package config

const (
	defaultStagingDir           = "~/.local/share/potreed/staging"
	defaultLogDir               = "~/.local/share/potreed/logs"
	defaultStorageBackend       = "gcs"
	defaultURLTTLHours          = 72
	defaultPollInterval         = 5
	defaultCleanupInterval      = 3600
	defaultRetentionHours       = 72
	defaultStagingMaxAgeHours   = 24
	defaultPDALBinary           = "pdal"
	defaultPotreeConverter      = "PotreeConverter"
	defaultInfoTimeout          = 120
	defaultConvertTimeout       = 3600
	defaultUploadConcurrency    = 8
	defaultThumbnailSize        = 512
	defaultThumbnailPointBudget = 250_000
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Storage: Storage{
			Backend:     defaultStorageBackend,
			URLTTLHours: defaultURLTTLHours,
		},
		Worker: Worker{
			PollInterval:       defaultPollInterval,
			CleanupInterval:    defaultCleanupInterval,
			RetentionHours:     defaultRetentionHours,
			StagingMaxAgeHours: defaultStagingMaxAgeHours,
		},
		Tools: Tools{
			PDALBinary:           defaultPDALBinary,
			PotreeConverter:      defaultPotreeConverter,
			InfoTimeout:          defaultInfoTimeout,
			ConvertTimeout:       defaultConvertTimeout,
			UploadConcurrency:    defaultUploadConcurrency,
			ThumbnailSize:        defaultThumbnailSize,
			ThumbnailPointBudget: defaultThumbnailPointBudget,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
