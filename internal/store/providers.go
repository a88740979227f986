package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const providerColumns = `id, code, name, merge_key, file_pattern, skip_existing,
	auto_process, schedule_active, default_template, connection_status,
	created_at, updated_at`

// CreateProvider inserts a new feed source.
func (s *Store) CreateProvider(ctx context.Context, p *Provider) (*Provider, error) {
	if p == nil || p.Code == "" {
		return nil, errors.New("provider code is required")
	}
	now := timestamp()
	res, err := s.execWithRetry(ctx, `
		INSERT INTO providers (
			code, name, merge_key, file_pattern, skip_existing, auto_process,
			schedule_active, default_template, connection_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Code, p.Name, defaultMergeKey(p.MergeKey), p.FilePattern,
		boolToInt(p.SkipExisting), boolToInt(p.AutoProcess), boolToInt(p.ScheduleActive),
		p.DefaultTemplate, p.ConnectionStatus, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert provider: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetProvider(ctx, id)
}

// UpdateProvider persists changes to an existing provider.
func (s *Store) UpdateProvider(ctx context.Context, p *Provider) error {
	if p == nil || p.ID == 0 {
		return errors.New("provider id is required")
	}
	_, err := s.execWithRetry(ctx, `
		UPDATE providers SET
			code = ?, name = ?, merge_key = ?, file_pattern = ?, skip_existing = ?,
			auto_process = ?, schedule_active = ?, default_template = ?,
			connection_status = ?, updated_at = ?
		WHERE id = ?`,
		p.Code, p.Name, defaultMergeKey(p.MergeKey), p.FilePattern,
		boolToInt(p.SkipExisting), boolToInt(p.AutoProcess), boolToInt(p.ScheduleActive),
		p.DefaultTemplate, p.ConnectionStatus, timestamp(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	return nil
}

// GetProvider fetches a provider by identifier.
func (s *Store) GetProvider(ctx context.Context, id int64) (*Provider, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
	p, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

// GetProviderByCode fetches a provider by its unique code.
func (s *Store) GetProviderByCode(ctx context.Context, code string) (*Provider, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE code = ?`, code)
	p, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider by code: %w", err)
	}
	return p, nil
}

// ListProviders returns all providers ordered by code.
func (s *Store) ListProviders(ctx context.Context) ([]*Provider, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*Provider, error) {
	var (
		p                                        Provider
		skipExisting, autoProcess, scheduleActve int
		createdAt, updatedAt                     string
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.MergeKey, &p.FilePattern, &skipExisting,
		&autoProcess, &scheduleActve, &p.DefaultTemplate, &p.ConnectionStatus,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.SkipExisting = skipExisting != 0
	p.AutoProcess = autoProcess != 0
	p.ScheduleActive = scheduleActve != 0
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func defaultMergeKey(key string) string {
	if key == "" {
		return "Matnr"
	}
	return key
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
