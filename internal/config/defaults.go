package config

const (
	defaultDataDir          = "~/.local/share/feedmill/data"
	defaultInboxDir         = "~/.local/share/feedmill/inbox"
	defaultExportDir        = "~/.local/share/feedmill/exports"
	defaultLogDir           = "~/.local/share/feedmill/logs"
	defaultAPIBind          = "127.0.0.1:7493"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultProgressInterval = 10
	defaultKeyMaxLength     = 50
	defaultPurgeBatchSize   = 50000
	defaultMinFreeDiskMB    = 256
	defaultSweepInterval    = 60
	defaultSweepBatchSize   = 5
	defaultStuckRunMinutes  = 120
	defaultAttachmentTries  = 5
	defaultAttachmentWaitMS = 100
	defaultSuggestPrefixLen = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			InboxDir:  defaultInboxDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Import: Import{
			ProgressInterval: defaultProgressInterval,
			KeyMaxLength:     defaultKeyMaxLength,
			PurgeBatchSize:   defaultPurgeBatchSize,
			MinFreeDiskMB:    defaultMinFreeDiskMB,
		},
		Scheduler: Scheduler{
			SweepInterval:    defaultSweepInterval,
			SweepBatchSize:   defaultSweepBatchSize,
			StuckRunMinutes:  defaultStuckRunMinutes,
			AttachmentTries:  defaultAttachmentTries,
			AttachmentWaitMS: defaultAttachmentWaitMS,
		},
		Brands: Brands{
			AutoCreatePending: true,
			SuggestPrefixLen:  defaultSuggestPrefixLen,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
