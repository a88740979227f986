package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const runColumns = `id, token, provider_id, name, status, started_at, ended_at,
	files_downloaded, files_imported, processed, created_count, updated_count,
	skipped, errors, duplicates, log, last_error, created_at, updated_at`

// ErrRunStatusConflict indicates a run transition was refused because the run
// was not in the expected state. Status moves only pending→running→{ok,failed}.
var ErrRunStatusConflict = errors.New("run status conflict")

// EnqueueRun inserts a pending run for a provider.
func (s *Store) EnqueueRun(ctx context.Context, providerID int64, name string) (*Run, error) {
	now := timestamp()
	if strings.TrimSpace(name) == "" {
		name = "run " + now
	}
	res, err := s.execWithRetry(ctx, `
		INSERT INTO plan_runs (token, provider_id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), providerID, name, RunPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRun(ctx, id)
}

// GetRun fetches a run by identifier.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM plan_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// NextPendingRuns returns up to limit pending runs, oldest first.
func (s *Store) NextPendingRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM plan_runs WHERE status = ? ORDER BY id ASC LIMIT ?`,
		RunPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("next pending runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *Store) ListRuns(ctx context.Context, statuses ...RunStatus) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM plan_runs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// MarkRunRunning transitions pending→running. Transitioning from any other
// state returns ErrRunStatusConflict; monotonicity is enforced here, not in
// callers.
func (s *Store) MarkRunRunning(ctx context.Context, id int64) error {
	now := timestamp()
	res, err := s.execWithRetry(ctx, `
		UPDATE plan_runs SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		RunRunning, now, now, id, RunPending,
	)
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	return requireAffected(res, id)
}

// FinishRun transitions running→{ok,failed} and records final counts.
func (s *Store) FinishRun(ctx context.Context, id int64, status RunStatus, counts RunCounts, filesDownloaded, filesImported int, lastError string) error {
	if status != RunOK && status != RunFailed {
		return fmt.Errorf("finish run: invalid terminal status %q", status)
	}
	now := timestamp()
	res, err := s.execWithRetry(ctx, `
		UPDATE plan_runs SET
			status = ?, ended_at = ?, updated_at = ?,
			files_downloaded = ?, files_imported = ?,
			processed = ?, created_count = ?, updated_count = ?,
			skipped = ?, errors = ?, duplicates = ?, last_error = ?
		WHERE id = ? AND status = ?`,
		status, now, now,
		filesDownloaded, filesImported,
		counts.Processed, counts.Created, counts.Updated,
		counts.Skipped, counts.Errors, counts.Duplicates, lastError,
		id, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireAffected(res, id)
}

// ResetRun is the explicit operator action returning a failed run to pending.
func (s *Store) ResetRun(ctx context.Context, id int64) error {
	now := timestamp()
	res, err := s.execWithRetry(ctx, `
		UPDATE plan_runs SET status = ?, started_at = NULL, ended_at = NULL,
			last_error = '', updated_at = ?
		WHERE id = ? AND status = ?`,
		RunPending, now, id, RunFailed,
	)
	if err != nil {
		return fmt.Errorf("reset run: %w", err)
	}
	return requireAffected(res, id)
}

// AppendRunLog appends a timestamped line to the run's cumulative log.
func (s *Store) AppendRunLog(ctx context.Context, id int64, line string) error {
	entry := time.Now().UTC().Format(time.RFC3339) + " " + strings.TrimSpace(line) + "\n"
	_, err := s.execWithRetry(ctx,
		`UPDATE plan_runs SET log = log || ?, updated_at = ? WHERE id = ?`,
		entry, timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

// FailStuckRuns marks runs stuck in running longer than maxAge as failed.
// Called on daemon startup so a crash never leaves a run dangling.
func (s *Store) FailStuckRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339Nano)
	now := timestamp()
	res, err := s.execWithRetry(ctx, `
		UPDATE plan_runs SET status = ?, ended_at = ?, updated_at = ?,
			last_error = 'run interrupted by daemon restart'
		WHERE status = ? AND started_at < ?`,
		RunFailed, now, now, RunRunning, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stuck runs: %w", err)
	}
	return res.RowsAffected()
}

// RunStats returns a count of runs grouped by status.
func (s *Store) RunStats(ctx context.Context) (map[RunStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM plan_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[RunStatus]int)
	for rows.Next() {
		var status RunStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %d", ErrRunStatusConflict, id)
	}
	return nil
}

func collectRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                  Run
		startedAt, endedAt   *string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&run.ID, &run.Token, &run.ProviderID, &run.Name, &run.Status,
		&startedAt, &endedAt,
		&run.FilesDownloaded, &run.FilesImported,
		&run.Counts.Processed, &run.Counts.Created, &run.Counts.Updated,
		&run.Counts.Skipped, &run.Counts.Errors, &run.Counts.Duplicates,
		&run.Log, &run.LastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = parseTimePtr(startedAt)
	run.EndedAt = parseTimePtr(endedAt)
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	return &run, nil
}
