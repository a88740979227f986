package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/feedmill/feedmill/internal/brands"
	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/importer"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/scheduler"
	"github.com/feedmill/feedmill/internal/staging"
	"github.com/feedmill/feedmill/internal/store"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withStore opens the catalog database for one command invocation.
func (c *commandContext) withStore(fn func(context.Context, *config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), cfg, st)
}

// newScheduler wires an in-process scheduler for commands that execute runs
// directly instead of waiting for the daemon.
func (c *commandContext) newScheduler(cfg *config.Config, st *store.Store) *scheduler.Scheduler {
	logger := logging.NewNop()
	resolver := brands.NewResolver(st, cfg, logger)
	processor := staging.NewProcessor(st, resolver, cfg, logger)
	im := importer.New(st, processor, cfg, logger)
	return scheduler.New(cfg, st, im, logger)
}

func (c *commandContext) newResolver(cfg *config.Config, st *store.Store) *brands.Resolver {
	return brands.NewResolver(st, cfg, logging.NewNop())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
