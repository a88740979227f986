package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/scheduler"
	"github.com/feedmill/feedmill/internal/store"
)

// Daemon coordinates the background scheduler and the HTTP API, and enforces
// single-instance execution through a file lock.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	scheduler *scheduler.Scheduler

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DatabasePath string
	LockFilePath string
	Health       *store.Health
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, sched *scheduler.Scheduler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || sched == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and logger")
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "daemon"),
		store:     st,
		scheduler: sched,
		lockPath:  cfg.LockFilePath(),
	}
	d.lock = flock.New(d.lockPath)

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, recovers runs interrupted by a previous
// crash, and launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another feedmill daemon instance is already running")
	}

	maxAge := time.Duration(d.cfg.Scheduler.StuckRunMinutes) * time.Minute
	if recovered, err := d.store.FailStuckRuns(ctx, maxAge); err != nil {
		d.logger.Warn("stuck run recovery failed", logging.Error(err))
	} else if recovered > 0 {
		d.logger.Info("failed stuck runs from previous session", logging.Int64("count", recovered))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scheduler.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.scheduler.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("feedmill daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("feedmill daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API address, empty until Start succeeds.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// EnqueueRun queues a run for the provider with the given code.
func (d *Daemon) EnqueueRun(ctx context.Context, providerCode, name string) (*store.Run, error) {
	provider, err := d.store.GetProviderByCode(ctx, providerCode)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %q not found", providerCode)
	}
	return d.store.EnqueueRun(ctx, provider.ID, name)
}

// ExecuteRunNow executes one run immediately, outside the sweep cadence.
func (d *Daemon) ExecuteRunNow(ctx context.Context, runID int64) (*store.Run, error) {
	return d.scheduler.ExecuteNow(ctx, runID)
}

// Status returns the current daemon status with database diagnostics.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	health, err := d.store.CheckHealth(ctx)
	if err != nil {
		d.logger.Warn("health check failed", logging.Error(err))
	} else {
		status.Health = health
	}
	return status
}
