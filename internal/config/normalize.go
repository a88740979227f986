package config

import "fmt"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImport()
	c.normalizeScheduler()
	c.normalizeBrands()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeImport() {
	if c.Import.ProgressInterval <= 0 {
		c.Import.ProgressInterval = defaultProgressInterval
	}
	if c.Import.KeyMaxLength <= 0 {
		c.Import.KeyMaxLength = defaultKeyMaxLength
	}
	if c.Import.PurgeBatchSize <= 0 {
		c.Import.PurgeBatchSize = defaultPurgeBatchSize
	}
	if c.Import.MinFreeDiskMB < 0 {
		c.Import.MinFreeDiskMB = 0
	}
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.SweepInterval <= 0 {
		c.Scheduler.SweepInterval = defaultSweepInterval
	}
	if c.Scheduler.SweepBatchSize <= 0 {
		c.Scheduler.SweepBatchSize = defaultSweepBatchSize
	}
	if c.Scheduler.StuckRunMinutes <= 0 {
		c.Scheduler.StuckRunMinutes = defaultStuckRunMinutes
	}
	if c.Scheduler.AttachmentTries <= 0 {
		c.Scheduler.AttachmentTries = defaultAttachmentTries
	}
	if c.Scheduler.AttachmentWaitMS <= 0 {
		c.Scheduler.AttachmentWaitMS = defaultAttachmentWaitMS
	}
}

func (c *Config) normalizeBrands() {
	if c.Brands.SuggestPrefixLen <= 0 {
		c.Brands.SuggestPrefixLen = defaultSuggestPrefixLen
	}
}

func (c *Config) normalizeLogging() {
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
