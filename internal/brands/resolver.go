// Package brands matches free-text supplier brand labels against the
// canonical brand table and manages the review queue for labels that do not
// match.
package brands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/store"
	"github.com/feedmill/feedmill/internal/textutil"
)

// Resolver looks brand labels up under normalization and records unknown
// labels as pending entries for operator review.
type Resolver struct {
	store       *store.Store
	logger      *slog.Logger
	prefixLen   int
	autoPending bool
}

// NewResolver builds a resolver from configuration.
func NewResolver(st *store.Store, cfg *config.Config, logger *slog.Logger) *Resolver {
	prefixLen := 3
	autoPending := true
	if cfg != nil {
		if cfg.Brands.SuggestPrefixLen > 0 {
			prefixLen = cfg.Brands.SuggestPrefixLen
		}
		autoPending = cfg.Brands.AutoCreatePending
	}
	return &Resolver{
		store:       st,
		logger:      logging.WithComponent(logger, "brands"),
		prefixLen:   prefixLen,
		autoPending: autoPending,
	}
}

// Lookup returns the brand a raw label resolves to, or nil. Matching is done
// on the normalized form against canonical names first, then each brand's
// alias list.
func (r *Resolver) Lookup(ctx context.Context, rawLabel string) (*store.Brand, error) {
	normalized := textutil.NormalizeLabel(rawLabel)
	if normalized == "" {
		return nil, nil
	}
	brand, err := r.store.FindBrandByNormalizedName(ctx, normalized)
	if err != nil || brand != nil {
		return brand, err
	}

	all, err := r.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		for _, alias := range b.AliasList() {
			if textutil.NormalizeLabel(alias) == normalized {
				return b, nil
			}
		}
	}
	return nil, nil
}

// Record resolves a label during import. On a miss it upserts a pending entry
// carrying a prefix-based suggestion and returns nil; the row itself proceeds
// under the caller's control. When pending-entry creation is disabled in
// configuration, a miss is just a nil result.
func (r *Resolver) Record(ctx context.Context, rawLabel string, providerID int64) (*store.Brand, error) {
	brand, err := r.Lookup(ctx, rawLabel)
	if err != nil {
		return nil, err
	}
	if brand != nil {
		return brand, nil
	}
	if !r.autoPending {
		return nil, nil
	}

	suggestedID, err := r.suggest(ctx, rawLabel)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpsertPendingBrand(ctx, rawLabel, providerID, suggestedID); err != nil {
		return nil, err
	}
	r.logger.Debug("recorded pending brand",
		logging.String("label", strings.TrimSpace(rawLabel)),
		logging.Int64("provider_id", providerID),
		logging.Int64("suggested_brand_id", suggestedID))
	return nil, nil
}

// suggest returns a brand id when exactly one brand's normalized name starts
// with the label's prefix. Zero or several candidates mean no suggestion;
// guessing between candidates would be worse than silence.
func (r *Resolver) suggest(ctx context.Context, rawLabel string) (int64, error) {
	normalized := textutil.NormalizeLabel(rawLabel)
	runes := []rune(normalized)
	if len(runes) < r.prefixLen {
		return 0, nil
	}
	prefix := string(runes[:r.prefixLen])

	all, err := r.store.ListBrands(ctx)
	if err != nil {
		return 0, err
	}
	var match int64
	for _, b := range all {
		if strings.HasPrefix(b.NormalizedName, prefix) {
			if match != 0 {
				return 0, nil
			}
			match = b.ID
		}
	}
	return match, nil
}

// Resolve is the operator action validating a pending entry against an
// existing brand. The raw label becomes an alias so future imports match
// directly, and every provider's open entry with the same normalized label is
// validated in the same store transaction.
func (r *Resolver) Resolve(ctx context.Context, pendingID, brandID int64) (int64, error) {
	pending, err := r.store.GetPendingBrand(ctx, pendingID)
	if err != nil {
		return 0, err
	}
	if pending == nil {
		return 0, fmt.Errorf("pending brand %d not found", pendingID)
	}
	if err := r.store.AddBrandAlias(ctx, brandID, pending.RawLabel); err != nil {
		return 0, err
	}
	resolved, err := r.store.ResolvePendingBrand(ctx, pendingID, brandID, store.PendingValidated)
	if err != nil {
		return 0, err
	}
	r.logger.Info("resolved pending brand",
		logging.String("label", pending.RawLabel),
		logging.Int64("brand_id", brandID),
		logging.Int64("entries", resolved))
	return resolved, nil
}

// ResolveAsNew creates a brand from the pending entry's label and validates
// the entry (and its cross-provider twins) against it.
func (r *Resolver) ResolveAsNew(ctx context.Context, pendingID int64, manufacturer string) (*store.Brand, int64, error) {
	pending, err := r.store.GetPendingBrand(ctx, pendingID)
	if err != nil {
		return nil, 0, err
	}
	if pending == nil {
		return nil, 0, fmt.Errorf("pending brand %d not found", pendingID)
	}
	brand, err := r.store.CreateBrand(ctx, pending.RawLabel, manufacturer)
	if err != nil {
		return nil, 0, err
	}
	resolved, err := r.store.ResolvePendingBrand(ctx, pendingID, brand.ID, store.PendingNewBrand)
	if err != nil {
		return nil, 0, err
	}
	return brand, resolved, nil
}

// ReverifyAll rechecks every open pending entry against the current brand and
// alias tables and validates the ones that now match. Running it twice is a
// no-op the second time: entries leave the open state on the first pass.
func (r *Resolver) ReverifyAll(ctx context.Context) (int64, error) {
	open, err := r.store.ListPendingBrands(ctx, store.PendingOpen)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, pending := range open {
		brand, err := r.Lookup(ctx, pending.RawLabel)
		if err != nil {
			return total, err
		}
		if brand == nil {
			continue
		}
		resolved, err := r.store.ResolvePendingBrand(ctx, pending.ID, brand.ID, store.PendingValidated)
		if err != nil {
			return total, err
		}
		// A twin may already have been swept up by an earlier iteration;
		// zero affected rows just means there was nothing left to do.
		total += resolved
	}
	if total > 0 {
		r.logger.Info("reverified pending brands", logging.Int64("resolved", total))
	}
	return total, nil
}
