package main

import (
	"log/slog"

	"github.com/feedmill/feedmill/internal/brands"
	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/daemon"
	"github.com/feedmill/feedmill/internal/importer"
	"github.com/feedmill/feedmill/internal/scheduler"
	"github.com/feedmill/feedmill/internal/staging"
	"github.com/feedmill/feedmill/internal/store"
)

func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	resolver := brands.NewResolver(st, cfg, logger)
	processor := staging.NewProcessor(st, resolver, cfg, logger)
	im := importer.New(st, processor, cfg, logger)
	sched := scheduler.New(cfg, st, im, logger)

	d, err := daemon.New(cfg, st, sched, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return d, nil
}
