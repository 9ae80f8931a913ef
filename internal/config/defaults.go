package config

const (
	defaultDataDir            = "~/.local/share/gazetteer"
	defaultArchiveRoot        = "~/.local/share/gazetteer/archive"
	defaultLogDir             = "~/.local/share/gazetteer/logs"
	defaultArchiverBinary     = "monolith"
	defaultCaptureTimeout     = 300
	defaultRequestTimeout     = 30
	defaultBatchSize          = 10
	defaultMaxRetries         = 3
	defaultPollInterval       = 30
	defaultErrorRetryInterval = 10
	defaultClaimLeaseSeconds  = 900
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			ArchiveRoot: defaultArchiveRoot,
			LogDir:      defaultLogDir,
		},
		Archiver: Archiver{
			Binary:         defaultArchiverBinary,
			Args:           []string{"--output", "{dest}", "{url}"},
			CaptureTimeout: defaultCaptureTimeout,
		},
		AssetStore: AssetStore{
			RequestTimeout: defaultRequestTimeout,
		},
		Workflow: Workflow{
			BatchSize:          defaultBatchSize,
			MaxRetries:         defaultMaxRetries,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			ClaimLeaseSeconds:  defaultClaimLeaseSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
