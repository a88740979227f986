package store

import (
	"context"
	"errors"
	"fmt"
)

// UpsertVendorEntry replaces the per-(key, provider) quantity and price
// snapshot. Feeds carry current availability, so the latest row always wins.
func (s *Store) UpsertVendorEntry(ctx context.Context, e *VendorEntry) error {
	if e == nil || e.ProductKey == "" || e.ProviderID == 0 {
		return errors.New("vendor entry requires a product key and provider")
	}
	if e.Currency == "" {
		e.Currency = "EUR"
	}
	_, err := s.execWithRetry(ctx, `
		INSERT INTO vendor_entries (product_key, provider_id, quantity, price, currency, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_key, provider_id) DO UPDATE SET
			quantity = excluded.quantity,
			price = excluded.price,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		e.ProductKey, e.ProviderID, e.Quantity, e.Price, e.Currency, timestamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert vendor entry: %w", err)
	}
	return nil
}

// ListVendorEntries returns a provider's snapshot rows ordered by key.
func (s *Store) ListVendorEntries(ctx context.Context, providerID int64) ([]*VendorEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_key, provider_id, quantity, price, currency, updated_at
		FROM vendor_entries WHERE provider_id = ? ORDER BY product_key`,
		providerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list vendor entries: %w", err)
	}
	defer rows.Close()

	var entries []*VendorEntry
	for rows.Next() {
		var (
			e         VendorEntry
			updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.ProductKey, &e.ProviderID, &e.Quantity, &e.Price, &e.Currency, &updatedAt); err != nil {
			return nil, err
		}
		e.UpdatedAt = parseTime(updatedAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
