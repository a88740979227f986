package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/feedmill/feedmill/internal/textutil"
)

const brandColumns = `id, name, normalized_name, manufacturer, aliases, created_at, updated_at`

const pendingColumns = `id, raw_label, normalized_label, provider_id, product_count,
	state, suggested_brand_id, validated_brand_id, created_at, updated_at`

// CreateBrand inserts a canonical brand.
func (s *Store) CreateBrand(ctx context.Context, name, manufacturer string) (*Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("brand name is required")
	}
	now := timestamp()
	res, err := s.execWithRetry(ctx, `
		INSERT INTO brands (name, normalized_name, manufacturer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		name, textutil.NormalizeLabel(name), strings.TrimSpace(manufacturer), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert brand: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetBrand(ctx, id)
}

// GetBrand fetches a brand by identifier.
func (s *Store) GetBrand(ctx context.Context, id int64) (*Brand, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = ?`, id)
	b, err := scanBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	return b, nil
}

// FindBrandByNormalizedName returns the brand whose name normalizes to the
// given form, or nil.
func (s *Store) FindBrandByNormalizedName(ctx context.Context, normalized string) (*Brand, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+brandColumns+` FROM brands WHERE normalized_name = ? ORDER BY id LIMIT 1`,
		normalized,
	)
	b, err := scanBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find brand: %w", err)
	}
	return b, nil
}

// ListBrands returns all brands ordered by name.
func (s *Store) ListBrands(ctx context.Context) ([]*Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+brandColumns+` FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	var brands []*Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// AddBrandAlias appends a raw label to a brand's alias list if not already
// present under normalization.
func (s *Store) AddBrandAlias(ctx context.Context, brandID int64, alias string) error {
	brand, err := s.GetBrand(ctx, brandID)
	if err != nil {
		return err
	}
	if brand == nil {
		return fmt.Errorf("brand %d not found", brandID)
	}

	alias = strings.TrimSpace(alias)
	normalized := textutil.NormalizeLabel(alias)
	if alias == "" || normalized == brand.NormalizedName {
		return nil
	}
	for _, existing := range brand.AliasList() {
		if textutil.NormalizeLabel(existing) == normalized {
			return nil
		}
	}

	aliases := brand.Aliases
	if strings.TrimSpace(aliases) == "" {
		aliases = alias
	} else {
		aliases += "," + alias
	}
	_, err = s.execWithRetry(ctx,
		`UPDATE brands SET aliases = ?, updated_at = ? WHERE id = ?`,
		aliases, timestamp(), brandID,
	)
	if err != nil {
		return fmt.Errorf("add brand alias: %w", err)
	}
	return nil
}

// UpsertPendingBrand records one more sighting of an unrecognized brand label
// for a provider, creating the (raw label, provider) pair on first sight.
func (s *Store) UpsertPendingBrand(ctx context.Context, rawLabel string, providerID int64, suggestedBrandID int64) error {
	rawLabel = strings.TrimSpace(rawLabel)
	if rawLabel == "" || providerID == 0 {
		return errors.New("pending brand requires a label and provider")
	}
	now := timestamp()
	_, err := s.execWithRetry(ctx, `
		INSERT INTO pending_brands (
			raw_label, normalized_label, provider_id, product_count, state,
			suggested_brand_id, created_at, updated_at
		) VALUES (?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT (raw_label, provider_id) DO UPDATE SET
			product_count = product_count + 1,
			updated_at = excluded.updated_at`,
		rawLabel, textutil.NormalizeLabel(rawLabel), providerID, PendingOpen,
		nullableID(suggestedBrandID), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert pending brand: %w", err)
	}
	return nil
}

// GetPendingBrand fetches one pending entry by identifier.
func (s *Store) GetPendingBrand(ctx context.Context, id int64) (*PendingBrand, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_brands WHERE id = ?`, id)
	p, err := scanPendingBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending brand: %w", err)
	}
	return p, nil
}

// ListPendingBrands returns entries filtered by state; an empty state lists
// everything.
func (s *Store) ListPendingBrands(ctx context.Context, state PendingState) ([]*PendingBrand, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_brands`
	args := []any{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY product_count DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending brands: %w", err)
	}
	defer rows.Close()

	var out []*PendingBrand
	for rows.Next() {
		p, err := scanPendingBrand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ResolvePendingBrand validates one entry against a brand and, in the same
// transaction, auto-resolves every other provider's still-pending entry
// carrying the same normalized label. Returns how many entries transitioned.
func (s *Store) ResolvePendingBrand(ctx context.Context, pendingID, brandID int64, state PendingState) (int64, error) {
	if state != PendingValidated && state != PendingNewBrand {
		return 0, fmt.Errorf("resolve pending brand: invalid target state %q", state)
	}
	pending, err := s.GetPendingBrand(ctx, pendingID)
	if err != nil {
		return 0, err
	}
	if pending == nil {
		return 0, fmt.Errorf("pending brand %d not found", pendingID)
	}

	now := timestamp()
	tx, err := s.db.BeginTx(ensureContext(ctx), nil)
	if err != nil {
		return 0, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Cross-provider propagation happens as one bulk update so a concurrent
	// resolution cannot observe a half-propagated alias.
	res, err := tx.ExecContext(ctx, `
		UPDATE pending_brands SET
			state = ?, validated_brand_id = ?, updated_at = ?
		WHERE state = ? AND normalized_label = ?`,
		state, brandID, now, PendingOpen, pending.NormalizedLabel,
	)
	if err != nil {
		return 0, fmt.Errorf("propagate resolution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit resolve: %w", err)
	}
	return affected, nil
}

// IgnorePendingBrand marks one entry ignored without touching other providers.
func (s *Store) IgnorePendingBrand(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE pending_brands SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		PendingIgnored, timestamp(), id, PendingOpen,
	)
	if err != nil {
		return fmt.Errorf("ignore pending brand: %w", err)
	}
	return nil
}

func scanBrand(row rowScanner) (*Brand, error) {
	var (
		b                    Brand
		createdAt, updatedAt string
	)
	err := row.Scan(&b.ID, &b.Name, &b.NormalizedName, &b.Manufacturer, &b.Aliases, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

func scanPendingBrand(row rowScanner) (*PendingBrand, error) {
	var (
		p                    PendingBrand
		suggested, validated sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.ID, &p.RawLabel, &p.NormalizedLabel, &p.ProviderID, &p.ProductCount,
		&p.State, &suggested, &validated, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.SuggestedBrandID = suggested.Int64
	p.ValidatedBrandID = validated.Int64
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
