package store

import (
	"context"
	"fmt"
)

const stagingColumns = `id, run_id, provider_id, row_number, key, error_type,
	raw_data, duplicate_count, existing_ref, action_taken, created_at`

// AddStagingRow quarantines one input row with its classification and raw
// content preserved for diagnosis.
func (s *Store) AddStagingRow(ctx context.Context, r *StagingRow) error {
	if r == nil || r.RunID == 0 {
		return fmt.Errorf("staging row requires a run id")
	}
	if r.ErrorType == "" {
		r.ErrorType = ErrOther
	}
	_, err := s.execWithRetry(ctx, `
		INSERT INTO staging_rows (
			run_id, provider_id, row_number, key, error_type, raw_data,
			duplicate_count, existing_ref, action_taken, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.ProviderID, r.RowNumber, r.Key, r.ErrorType, r.RawData,
		r.DuplicateCount, r.ExistingRef, r.ActionTaken, timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert staging row: %w", err)
	}
	return nil
}

// ListStagingRows returns quarantined rows for a run, oldest first. A zero
// runID lists across all runs.
func (s *Store) ListStagingRows(ctx context.Context, runID int64, limit int) ([]*StagingRow, error) {
	query := `SELECT ` + stagingColumns + ` FROM staging_rows`
	args := []any{}
	if runID > 0 {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list staging rows: %w", err)
	}
	defer rows.Close()

	var out []*StagingRow
	for rows.Next() {
		var (
			r         StagingRow
			createdAt string
		)
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.ProviderID, &r.RowNumber, &r.Key, &r.ErrorType,
			&r.RawData, &r.DuplicateCount, &r.ExistingRef, &r.ActionTaken, &createdAt,
		); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// AnnotateStagingRow records the operator's follow-up note on a quarantined
// row; the row itself stays read-only.
func (s *Store) AnnotateStagingRow(ctx context.Context, id int64, actionTaken string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE staging_rows SET action_taken = ? WHERE id = ?`, actionTaken, id,
	)
	if err != nil {
		return fmt.Errorf("annotate staging row: %w", err)
	}
	return nil
}

// CountStagingRows returns the quarantine size grouped by error type.
func (s *Store) CountStagingRows(ctx context.Context) (map[ErrorType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT error_type, COUNT(1) FROM staging_rows GROUP BY error_type`)
	if err != nil {
		return nil, fmt.Errorf("count staging rows: %w", err)
	}
	defer rows.Close()

	counts := make(map[ErrorType]int)
	for rows.Next() {
		var et ErrorType
		var count int
		if err := rows.Scan(&et, &count); err != nil {
			return nil, err
		}
		counts[et] = count
	}
	return counts, rows.Err()
}
