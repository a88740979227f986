package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/feedmill/feedmill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Paths.ExportDir = filepath.Join(base, "export")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithProgressInterval overrides how often row progress is reported.
func WithProgressInterval(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Import.ProgressInterval = n
	}
}

// WithPurgeBatchSize overrides the staging purge batch size.
func WithPurgeBatchSize(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Import.PurgeBatchSize = n
	}
}
