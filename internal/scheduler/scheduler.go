// Package scheduler drains the pending run queue in the background.
//
// Each sweep picks a bounded batch of pending runs, oldest first, and
// executes them one at a time. A run failing never stops the sweep; the
// failure is recorded on the run and the next one proceeds.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/importer"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/store"
)

// Scheduler coordinates background execution of pending runs.
type Scheduler struct {
	cfg      *config.Config
	store    *store.Store
	importer *importer.Importer
	logger   *slog.Logger

	sweepInterval time.Duration
	batchSize     int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a scheduler.
func New(cfg *config.Config, st *store.Store, im *importer.Importer, logger *slog.Logger) *Scheduler {
	interval := time.Duration(cfg.Scheduler.SweepInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	batch := cfg.Scheduler.SweepBatchSize
	if batch <= 0 {
		batch = 5
	}
	return &Scheduler{
		cfg:           cfg,
		store:         st,
		importer:      im,
		logger:        logging.WithComponent(logger, "scheduler"),
		sweepInterval: interval,
		batchSize:     batch,
	}
}

// Start begins background sweeping.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

// Stop terminates background sweeping and waits for the current run to end.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("sweep failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.sweepInterval):
		}
	}
}

// Sweep executes one bounded batch of pending runs, oldest first. It returns
// an error only when the queue itself cannot be read; per-run failures are
// recorded on the runs.
func (s *Scheduler) Sweep(ctx context.Context) error {
	runs, err := s.store.NextPendingRuns(ctx, s.batchSize)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.executeRun(ctx, run)
	}
	return nil
}

// ExecuteNow claims and executes one specific run immediately, outside the
// sweep cadence.
func (s *Scheduler) ExecuteNow(ctx context.Context, runID int64) (*store.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.New("run not found")
	}
	s.executeRun(ctx, run)
	return s.store.GetRun(ctx, runID)
}

func (s *Scheduler) executeRun(ctx context.Context, run *store.Run) {
	logger := s.logger.With(logging.Int64("run_id", run.ID))

	if err := s.store.MarkRunRunning(ctx, run.ID); err != nil {
		// Another actor claimed it first; not a failure.
		if errors.Is(err, store.ErrRunStatusConflict) {
			logger.Debug("run already claimed")
			return
		}
		logger.Error("claim run", logging.Error(err))
		return
	}

	result, execErr := s.importer.Execute(ctx, run)

	status := store.RunOK
	lastError := ""
	if execErr != nil {
		status = store.RunFailed
		lastError = execErr.Error()
		logger.Error("run failed", logging.Error(execErr))
	} else {
		logger.Info("run finished",
			logging.Int("processed", result.Counts.Processed),
			logging.Int("created", result.Counts.Created),
			logging.Int("updated", result.Counts.Updated),
			logging.Int("errors", result.Counts.Errors))
	}

	finishCtx := ctx
	if finishCtx.Err() != nil {
		// The daemon is shutting down; still persist the terminal state.
		var cancel context.CancelFunc
		finishCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	err := s.store.FinishRun(finishCtx, run.ID, status, result.Counts,
		result.FilesDownloaded, result.FilesImported, lastError)
	if err != nil {
		logger.Error("finish run", logging.Error(err))
	}
}
