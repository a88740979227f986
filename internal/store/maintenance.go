package store

import (
	"context"
	"fmt"
)

// PurgeResult reports what a staging purge removed.
type PurgeResult struct {
	Deleted int64
	Batches int
}

// PurgeStagingRows deletes quarantined rows in fixed-size batches so the
// write lock is released between rounds and readers are never starved. A zero
// runID purges across all runs.
func (s *Store) PurgeStagingRows(ctx context.Context, runID int64, batchSize int) (PurgeResult, error) {
	if batchSize <= 0 {
		batchSize = 50000
	}

	query := `
		DELETE FROM staging_rows WHERE rowid IN (
			SELECT rowid FROM staging_rows LIMIT ?)`
	args := []any{batchSize}
	if runID > 0 {
		query = `
			DELETE FROM staging_rows WHERE rowid IN (
				SELECT rowid FROM staging_rows WHERE run_id = ? LIMIT ?)`
		args = []any{runID, batchSize}
	}

	var result PurgeResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := s.execWithRetry(ctx, query, args...)
		if err != nil {
			return result, fmt.Errorf("purge staging rows: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return result, err
		}
		if affected == 0 {
			return result, nil
		}
		result.Deleted += affected
		result.Batches++
		// A short batch means the table is drained; no follow-up round.
		if affected < int64(batchSize) {
			return result, nil
		}
	}
}

// Health is a snapshot of database-level diagnostics.
type Health struct {
	Providers     int
	Products      int
	Brands        int
	PendingBrands int
	StagingRows   int
	Runs          map[RunStatus]int
}

// CheckHealth gathers table counts used by the daemon status endpoint.
func (s *Store) CheckHealth(ctx context.Context) (*Health, error) {
	h := &Health{}
	singles := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(1) FROM providers`, &h.Providers},
		{`SELECT COUNT(1) FROM products`, &h.Products},
		{`SELECT COUNT(1) FROM brands`, &h.Brands},
		{`SELECT COUNT(1) FROM pending_brands WHERE state = 'pending'`, &h.PendingBrands},
		{`SELECT COUNT(1) FROM staging_rows`, &h.StagingRows},
	}
	for _, q := range singles {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("check health: %w", err)
		}
	}
	runs, err := s.RunStats(ctx)
	if err != nil {
		return nil, err
	}
	h.Runs = runs
	return h, nil
}
