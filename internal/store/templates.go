package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/feedmill/feedmill/internal/mapping"
)

// SaveTemplate inserts or replaces a mapping template for a provider.
// Marking a template active deactivates the provider's other templates;
// one active template per provider is an engine precondition.
func (s *Store) SaveTemplate(ctx context.Context, providerID int64, t *mapping.Template, active bool) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	linesJSON, err := json.Marshal(t.Lines)
	if err != nil {
		return 0, fmt.Errorf("marshal template lines: %w", err)
	}

	now := timestamp()
	tx, err := s.db.BeginTx(ensureContext(ctx), nil)
	if err != nil {
		return 0, fmt.Errorf("begin template tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if active {
		if _, err := tx.ExecContext(ctx,
			`UPDATE mapping_templates SET active = 0, updated_at = ? WHERE provider_id = ?`,
			now, providerID,
		); err != nil {
			return 0, fmt.Errorf("deactivate templates: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO mapping_templates (provider_id, name, active, lines_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_id, name) DO UPDATE SET
			active = excluded.active,
			lines_json = excluded.lines_json,
			updated_at = excluded.updated_at`,
		providerID, t.Name, boolToInt(active), string(linesJSON), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("save template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit template: %w", err)
	}

	id, _ := res.LastInsertId()
	return id, nil
}

// ActiveTemplate returns the provider's single active template, or nil.
func (s *Store) ActiveTemplate(ctx context.Context, providerID int64) (*mapping.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, lines_json FROM mapping_templates
		WHERE provider_id = ? AND active = 1
		ORDER BY id DESC LIMIT 1`, providerID)
	return scanTemplate(row)
}

// GetTemplate returns a provider's template by name, or nil.
func (s *Store) GetTemplate(ctx context.Context, providerID int64, name string) (*mapping.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, lines_json FROM mapping_templates
		WHERE provider_id = ? AND name = ?`, providerID, name)
	return scanTemplate(row)
}

// ListTemplates returns a provider's templates with their active flags.
func (s *Store) ListTemplates(ctx context.Context, providerID int64) ([]*mapping.Template, []bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, lines_json, active FROM mapping_templates
		WHERE provider_id = ? ORDER BY name`, providerID)
	if err != nil {
		return nil, nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var (
		templates []*mapping.Template
		actives   []bool
	)
	for rows.Next() {
		var (
			t         mapping.Template
			linesJSON string
			active    int
		)
		if err := rows.Scan(&t.ID, &t.Name, &linesJSON, &active); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(linesJSON), &t.Lines); err != nil {
			return nil, nil, fmt.Errorf("decode template %q: %w", t.Name, err)
		}
		templates = append(templates, &t)
		actives = append(actives, active != 0)
	}
	return templates, actives, rows.Err()
}

func scanTemplate(row *sql.Row) (*mapping.Template, error) {
	var (
		t         mapping.Template
		linesJSON string
	)
	err := row.Scan(&t.ID, &t.Name, &linesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if err := json.Unmarshal([]byte(linesJSON), &t.Lines); err != nil {
		return nil, fmt.Errorf("decode template %q: %w", t.Name, err)
	}
	return &t, nil
}
