package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const productColumns = `id, reference, name, barcode, extra_barcodes, brand_id,
	price, fields_json, created_at, updated_at`

// CreateProduct inserts a catalog entry.
func (s *Store) CreateProduct(ctx context.Context, p *Product) (int64, error) {
	if p == nil || (p.Reference == "" && p.Barcode == "" && p.Name == "") {
		return 0, errors.New("product requires a reference, barcode, or name")
	}
	if p.FieldsJSON == "" {
		p.FieldsJSON = "{}"
	}
	now := timestamp()
	res, err := s.execWithRetry(ctx, `
		INSERT INTO products (reference, name, barcode, extra_barcodes, brand_id, price, fields_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Reference, p.Name, p.Barcode, p.ExtraBarcodes,
		nullableID(p.BrandID), p.Price, p.FieldsJSON, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// UpdateProduct rewrites a product's mutable fields.
func (s *Store) UpdateProduct(ctx context.Context, p *Product) error {
	if p == nil || p.ID == 0 {
		return errors.New("product update requires an id")
	}
	_, err := s.execWithRetry(ctx, `
		UPDATE products SET
			reference = ?, name = ?, barcode = ?, extra_barcodes = ?,
			brand_id = ?, price = ?, fields_json = ?, updated_at = ?
		WHERE id = ?`,
		p.Reference, p.Name, p.Barcode, p.ExtraBarcodes,
		nullableID(p.BrandID), p.Price, p.FieldsJSON, timestamp(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// GetProduct fetches a product by identifier.
func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// FindProductByReference returns the product with the given internal
// reference, or nil.
func (s *Store) FindProductByReference(ctx context.Context, reference string) (*Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE reference = ? ORDER BY id LIMIT 1`,
		reference,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product by reference: %w", err)
	}
	return p, nil
}

// FindProductByAnyKey looks a product up under each candidate key in order,
// checking the primary barcode first and then the extra barcode list. It
// returns the product and the key that matched so callers can record which
// alias connected the row.
func (s *Store) FindProductByAnyKey(ctx context.Context, keys []string) (*Product, string, error) {
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		row := s.db.QueryRowContext(ctx, `
			SELECT `+productColumns+` FROM products
			WHERE barcode = ?
			   OR (',' || extra_barcodes || ',') LIKE ?
			ORDER BY id LIMIT 1`,
			key, "%,"+key+",%",
		)
		p, err := scanProduct(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("find product by key %q: %w", key, err)
		}
		return p, key, nil
	}
	return nil, "", nil
}

// CountProducts returns the catalog size.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func scanProduct(row rowScanner) (*Product, error) {
	var (
		p                    Product
		brandID              sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.ID, &p.Reference, &p.Name, &p.Barcode, &p.ExtraBarcodes,
		&brandID, &p.Price, &p.FieldsJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.BrandID = brandID.Int64
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
