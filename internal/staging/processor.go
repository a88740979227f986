// Package staging commits mapped feed rows to the product catalog and
// quarantines everything that cannot be committed, one classified row at a
// time.
package staging

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/feedmill/feedmill/internal/brands"
	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/mapping"
	"github.com/feedmill/feedmill/internal/store"
)

// Target fields with dedicated catalog columns; everything else lands in the
// product's free-form field document.
const (
	FieldKey       = "barcode"
	FieldReference = "reference"
	FieldName      = "name"
	FieldBrand     = "brand"
	FieldPrice     = "price"
	FieldQuantity  = "quantity"
	FieldCurrency  = "currency"
)

// Row is one tokenized input row with its original text preserved for
// quarantine.
type Row struct {
	Number int
	Cells  []string
	Raw    string
}

// Processor applies mapped rows against the catalog for a single run.
type Processor struct {
	store    *store.Store
	resolver *brands.Resolver
	logger   *slog.Logger

	progressInterval int
	keyMaxLength     int
}

// NewProcessor builds a processor from configuration.
func NewProcessor(st *store.Store, resolver *brands.Resolver, cfg *config.Config, logger *slog.Logger) *Processor {
	progress := 10
	keyMax := 50
	if cfg != nil {
		if cfg.Import.ProgressInterval > 0 {
			progress = cfg.Import.ProgressInterval
		}
		if cfg.Import.KeyMaxLength > 0 {
			keyMax = cfg.Import.KeyMaxLength
		}
	}
	return &Processor{
		store:            st,
		resolver:         resolver,
		logger:           logging.WithComponent(logger, "staging"),
		progressInterval: progress,
		keyMaxLength:     keyMax,
	}
}

// Process runs every row through the engine and the catalog, returning
// aggregate counts. Rows fail individually; only a storage error or context
// cancellation aborts the pass. The final summary is logged on every exit
// path, early termination included.
func (p *Processor) Process(ctx context.Context, run *store.Run, provider *store.Provider, engine *mapping.Engine, rows []Row) (store.RunCounts, error) {
	var counts store.RunCounts
	seenDigests := make(map[[sha256.Size]byte]int)
	seenKeys := make(map[string]int)

	logger := p.logger.With(
		logging.Int64("run_id", run.ID),
		logging.String("provider", provider.Code))

	defer func() {
		logger.Info("import finished",
			logging.Int("processed", counts.Processed),
			logging.Int("created", counts.Created),
			logging.Int("updated", counts.Updated),
			logging.Int("skipped", counts.Skipped),
			logging.Int("duplicates", counts.Duplicates),
			logging.Int("errors", counts.Errors))
	}()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		counts.Processed++

		if err := p.processRowSafe(ctx, run, provider, engine, row, seenDigests, seenKeys, &counts); err != nil {
			return counts, err
		}

		if counts.Processed%p.progressInterval == 0 {
			logger.Info("import progress",
				logging.Int("processed", counts.Processed),
				logging.Int("created", counts.Created),
				logging.Int("updated", counts.Updated),
				logging.Int("errors", counts.Errors))
		}
	}
	return counts, nil
}

// processRowSafe converts a per-row panic into a quarantined technical error
// so one malformed row never kills the whole run.
func (p *Processor) processRowSafe(ctx context.Context, run *store.Run, provider *store.Provider, engine *mapping.Engine, row Row, seenDigests map[[sha256.Size]byte]int, seenKeys map[string]int, counts *store.RunCounts) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("row processing panic",
				logging.Int64("run_id", run.ID),
				logging.Int("line", row.Number),
				logging.Any("panic", r))
			counts.Errors++
			err = p.quarantine(ctx, run, provider, row, "", store.ErrTechnical, 0, fmt.Sprint(r))
		}
	}()
	return p.processRow(ctx, run, provider, engine, row, seenDigests, seenKeys, counts)
}

func (p *Processor) processRow(ctx context.Context, run *store.Run, provider *store.Provider, engine *mapping.Engine, row Row, seenDigests map[[sha256.Size]byte]int, seenKeys map[string]int, counts *store.RunCounts) error {
	digest := sha256.Sum256([]byte(row.Raw))
	if n := seenDigests[digest]; n > 0 {
		seenDigests[digest] = n + 1
		counts.Duplicates++
		return p.quarantine(ctx, run, provider, row, "", store.ErrDedupedIdentical, n+1, "")
	}
	seenDigests[digest] = 1

	mapped, err := engine.Apply(row.Cells)
	if err != nil {
		var rowErr *mapping.RowError
		errorType := store.ErrOther
		note := err.Error()
		if errors.As(err, &rowErr) {
			if rowErr.Field == FieldKey {
				errorType = store.ErrNoKey
			}
			note = string(rowErr.Reason) + ": " + rowErr.Field
		}
		counts.Errors++
		return p.quarantine(ctx, run, provider, row, "", errorType, 0, note)
	}

	keys := SplitKeys(mapped[FieldKey], p.keyMaxLength)
	var primary string
	if len(keys) > 0 {
		primary = keys[0]
	} else if strings.TrimSpace(mapped[FieldName]) == "" {
		// Neither key nor name: nothing to identify the row by.
		counts.Skipped++
		return p.quarantine(ctx, run, provider, row, "", store.ErrNoKeyNoName, 0, "")
	}

	if primary != "" {
		if n := seenKeys[primary]; n > 0 {
			seenKeys[primary] = n + 1
			counts.Duplicates++
			return p.quarantine(ctx, run, provider, row, primary, store.ErrDuplicateKeyInFile, n+1, "")
		}
		seenKeys[primary] = 1
	}

	// Brand is optional metadata: an unresolved label never blocks the
	// catalog write. The miss is recorded in the review queue and annotated
	// on the run for audit.
	var brand *store.Brand
	if label := strings.TrimSpace(mapped[FieldBrand]); label != "" {
		brand, err = p.resolver.Record(ctx, label, provider.ID)
		if err != nil {
			return err
		}
		if brand == nil {
			if err := p.quarantine(ctx, run, provider, row, primary, store.ErrNoBrand, 0, label); err != nil {
				return err
			}
		}
	}

	var product *store.Product
	var matchedKey string
	if len(keys) > 0 {
		product, matchedKey, err = p.store.FindProductByAnyKey(ctx, keys)
		if err != nil {
			return err
		}
	}

	if product == nil {
		if ref := strings.TrimSpace(mapped[FieldReference]); ref != "" {
			byRef, err := p.store.FindProductByReference(ctx, ref)
			if err != nil {
				return err
			}
			switch {
			case byRef == nil:
			case len(keys) > 0:
				// Keyed existence checks look only at the key set; the same
				// reference on a different product is a conflict, not a match.
				counts.Errors++
				return p.quarantine(ctx, run, provider, row, primary, store.ErrDuplicateReference, 0, byRef.Barcode)
			default:
				// A keyless row has only its reference to match on.
				product = byRef
			}
		}
	}

	if product != nil && provider.SkipExisting {
		counts.Skipped++
		if err := p.quarantine(ctx, run, provider, row, matchedKey, store.ErrSkippedExisting, 0, product.Reference); err != nil {
			return err
		}
		return p.upsertVendorEntry(ctx, provider, primary, mapped)
	}

	if product == nil {
		if err := p.createProduct(ctx, keys, brand, mapped); err != nil {
			return err
		}
		counts.Created++
	} else {
		if err := p.updateProduct(ctx, product, brand, engine.UpdateModes(), mapped); err != nil {
			return err
		}
		counts.Updated++
	}
	return p.upsertVendorEntry(ctx, provider, primary, mapped)
}

func (p *Processor) createProduct(ctx context.Context, keys []string, brand *store.Brand, mapped map[string]string) error {
	product := &store.Product{
		Reference: mapped[FieldReference],
		Name:      mapped[FieldName],
		Price:     parseDecimal(mapped[FieldPrice]),
	}
	if len(keys) > 0 {
		product.Barcode = keys[0]
		product.ExtraBarcodes = strings.Join(keys[1:], ",")
	}
	if brand != nil {
		product.BrandID = brand.ID
	}
	extras := extraFields(mapped)
	if len(extras) > 0 {
		doc, err := json.Marshal(extras)
		if err != nil {
			return fmt.Errorf("encode product fields: %w", err)
		}
		product.FieldsJSON = string(doc)
	}
	_, err := p.store.CreateProduct(ctx, product)
	return err
}

func (p *Processor) updateProduct(ctx context.Context, product *store.Product, brand *store.Brand, modes map[string]mapping.UpdateMode, mapped map[string]string) error {
	apply := func(field string, current string) string {
		value, ok := mapped[field]
		if !ok || value == "" {
			return current
		}
		if modes[field] == mapping.UpdateFillIfEmpty && current != "" {
			return current
		}
		return value
	}

	product.Reference = apply(FieldReference, product.Reference)
	product.Name = apply(FieldName, product.Name)
	if price := mapped[FieldPrice]; price != "" {
		if modes[FieldPrice] != mapping.UpdateFillIfEmpty || product.Price == 0 {
			product.Price = parseDecimal(price)
		}
	}
	if brand != nil {
		if modes[FieldBrand] != mapping.UpdateFillIfEmpty || product.BrandID == 0 {
			product.BrandID = brand.ID
		}
	}

	fields := map[string]string{}
	if strings.TrimSpace(product.FieldsJSON) != "" {
		if err := json.Unmarshal([]byte(product.FieldsJSON), &fields); err != nil {
			return fmt.Errorf("decode product fields: %w", err)
		}
	}
	for field, value := range extraFields(mapped) {
		if value == "" {
			continue
		}
		if modes[field] == mapping.UpdateFillIfEmpty && fields[field] != "" {
			continue
		}
		fields[field] = value
	}
	if len(fields) > 0 {
		doc, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode product fields: %w", err)
		}
		product.FieldsJSON = string(doc)
	}
	return p.store.UpdateProduct(ctx, product)
}

func (p *Processor) upsertVendorEntry(ctx context.Context, provider *store.Provider, key string, mapped map[string]string) error {
	if key == "" {
		return nil
	}
	_, hasQty := mapped[FieldQuantity]
	_, hasPrice := mapped[FieldPrice]
	if !hasQty && !hasPrice {
		return nil
	}
	return p.store.UpsertVendorEntry(ctx, &store.VendorEntry{
		ProductKey: key,
		ProviderID: provider.ID,
		Quantity:   parseDecimal(mapped[FieldQuantity]),
		Price:      parseDecimal(mapped[FieldPrice]),
		Currency:   mapped[FieldCurrency],
	})
}

func (p *Processor) quarantine(ctx context.Context, run *store.Run, provider *store.Provider, row Row, key string, errorType store.ErrorType, duplicateCount int, existingRef string) error {
	return p.store.AddStagingRow(ctx, &store.StagingRow{
		RunID:          run.ID,
		ProviderID:     provider.ID,
		RowNumber:      row.Number,
		Key:            key,
		ErrorType:      errorType,
		RawData:        row.Raw,
		DuplicateCount: duplicateCount,
		ExistingRef:    existingRef,
	})
}

func extraFields(mapped map[string]string) map[string]string {
	known := map[string]struct{}{
		FieldKey: {}, FieldReference: {}, FieldName: {}, FieldBrand: {},
		FieldPrice: {}, FieldQuantity: {}, FieldCurrency: {},
	}
	extras := make(map[string]string)
	for field, value := range mapped {
		if _, ok := known[field]; ok {
			continue
		}
		extras[field] = value
	}
	return extras
}

func parseDecimal(value string) float64 {
	value = strings.TrimSpace(strings.ReplaceAll(value, ",", "."))
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
