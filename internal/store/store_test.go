package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/feedmill/feedmill/internal/mapping"
	"github.com/feedmill/feedmill/internal/store"
	"github.com/feedmill/feedmill/internal/testsupport"
)

func newTestTemplate(name string) *mapping.Template {
	return &mapping.Template{
		Name: name,
		Lines: []mapping.Line{
			{SourceColumn: "Matnr", TargetField: "barcode", Required: true, Active: true},
			{SourceColumn: "Name", TargetField: "name", Active: true},
		},
	}
}

func TestProviderRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := st.CreateProvider(ctx, &store.Provider{
		Code:         "sap",
		Name:         "SAP Feed",
		SkipExisting: true,
	})
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if created.MergeKey != "Matnr" {
		t.Fatalf("expected default merge key Matnr, got %q", created.MergeKey)
	}

	created.Name = "SAP Material Feed"
	created.AutoProcess = true
	if err := st.UpdateProvider(ctx, created); err != nil {
		t.Fatalf("UpdateProvider: %v", err)
	}

	byCode, err := st.GetProviderByCode(ctx, "sap")
	if err != nil {
		t.Fatalf("GetProviderByCode: %v", err)
	}
	if byCode == nil || byCode.Name != "SAP Material Feed" || !byCode.AutoProcess {
		t.Fatalf("unexpected provider after update: %+v", byCode)
	}
	if !byCode.SkipExisting {
		t.Fatal("skip_existing flag lost on update")
	}
}

func TestRunLifecycleIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)

	if run.Status != store.RunPending {
		t.Fatalf("new run status = %q, want pending", run.Status)
	}
	if err := st.MarkRunRunning(ctx, run.ID); err != nil {
		t.Fatalf("MarkRunRunning: %v", err)
	}
	if err := st.MarkRunRunning(ctx, run.ID); !errors.Is(err, store.ErrRunStatusConflict) {
		t.Fatalf("second MarkRunRunning error = %v, want ErrRunStatusConflict", err)
	}

	counts := store.RunCounts{Processed: 10, Created: 6, Updated: 2, Errors: 2}
	if err := st.FinishRun(ctx, run.ID, store.RunFailed, counts, 2, 1, "merge failed"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := st.FinishRun(ctx, run.ID, store.RunOK, counts, 2, 1, ""); !errors.Is(err, store.ErrRunStatusConflict) {
		t.Fatalf("double FinishRun error = %v, want ErrRunStatusConflict", err)
	}

	if err := st.ResetRun(ctx, run.ID); err != nil {
		t.Fatalf("ResetRun: %v", err)
	}
	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != store.RunPending || got.StartedAt != nil || got.LastError != "" {
		t.Fatalf("run not cleanly reset: %+v", got)
	}

	// Reset is failed-only; a pending run cannot be reset again.
	if err := st.ResetRun(ctx, run.ID); !errors.Is(err, store.ErrRunStatusConflict) {
		t.Fatalf("ResetRun on pending error = %v, want ErrRunStatusConflict", err)
	}
}

func TestFinishRunRejectsNonTerminalStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)
	if err := st.MarkRunRunning(ctx, run.ID); err != nil {
		t.Fatalf("MarkRunRunning: %v", err)
	}
	if err := st.FinishRun(ctx, run.ID, store.RunPending, store.RunCounts{}, 0, 0, ""); err == nil {
		t.Fatal("expected error finishing with non-terminal status")
	}
}

func TestNextPendingRunsOrdersOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	first := testsupport.NewRun(t, st, provider.ID)
	second := testsupport.NewRun(t, st, provider.ID)
	third := testsupport.NewRun(t, st, provider.ID)

	runs, err := st.NextPendingRuns(ctx, 2)
	if err != nil {
		t.Fatalf("NextPendingRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != first.ID || runs[1].ID != second.ID {
		t.Fatalf("unexpected pending batch: %+v", runs)
	}
	_ = third
}

func TestPurgeStagingRowsBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)

	const total = 120
	for i := 0; i < total; i++ {
		err := st.AddStagingRow(ctx, &store.StagingRow{
			RunID:      run.ID,
			ProviderID: provider.ID,
			RowNumber:  i + 1,
			Key:        fmt.Sprintf("key-%03d", i),
			ErrorType:  store.ErrNoKey,
			RawData:    "a;b;c",
		})
		if err != nil {
			t.Fatalf("AddStagingRow %d: %v", i, err)
		}
	}

	result, err := st.PurgeStagingRows(ctx, 0, 50)
	if err != nil {
		t.Fatalf("PurgeStagingRows: %v", err)
	}
	if result.Deleted != total {
		t.Fatalf("deleted %d rows, want %d", result.Deleted, total)
	}
	// 120 rows at batch size 50 takes exactly three delete rounds; the
	// short final batch ends the loop without a follow-up round.
	if result.Batches != 3 {
		t.Fatalf("purge used %d batches, want 3", result.Batches)
	}

	counts, err := st.CountStagingRows(ctx)
	if err != nil {
		t.Fatalf("CountStagingRows: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("staging rows remain after purge: %v", counts)
	}
}

func TestPurgeStagingRowsScopedToRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	keep := testsupport.NewRun(t, st, provider.ID)
	purge := testsupport.NewRun(t, st, provider.ID)

	for i, runID := range []int64{keep.ID, purge.ID, purge.ID} {
		err := st.AddStagingRow(ctx, &store.StagingRow{
			RunID: runID, ProviderID: provider.ID, RowNumber: i + 1, ErrorType: store.ErrOther,
		})
		if err != nil {
			t.Fatalf("AddStagingRow: %v", err)
		}
	}

	result, err := st.PurgeStagingRows(ctx, purge.ID, 10)
	if err != nil {
		t.Fatalf("PurgeStagingRows: %v", err)
	}
	if result.Deleted != 2 {
		t.Fatalf("deleted %d rows, want 2", result.Deleted)
	}
	remaining, err := st.ListStagingRows(ctx, keep.ID, 0)
	if err != nil {
		t.Fatalf("ListStagingRows: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("kept run lost rows: %d remain", len(remaining))
	}
}

func TestPendingBrandUpsertIncrementsCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	for i := 0; i < 3; i++ {
		if err := st.UpsertPendingBrand(ctx, "Bosch ", provider.ID, 0); err != nil {
			t.Fatalf("UpsertPendingBrand: %v", err)
		}
	}

	pending, err := st.ListPendingBrands(ctx, store.PendingOpen)
	if err != nil {
		t.Fatalf("ListPendingBrands: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(pending))
	}
	if pending[0].ProductCount != 3 {
		t.Fatalf("product count = %d, want 3", pending[0].ProductCount)
	}
	if pending[0].NormalizedLabel != "bosch" {
		t.Fatalf("normalized label = %q, want bosch", pending[0].NormalizedLabel)
	}
}

func TestResolvePendingBrandPropagatesAcrossProviders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	alpha := testsupport.NewProvider(t, st, "alpha", "Alpha")
	beta := testsupport.NewProvider(t, st, "beta", "Beta")
	gamma := testsupport.NewProvider(t, st, "gamma", "Gamma")

	// Same label with different raw spellings that normalize identically,
	// plus an unrelated label that must stay open.
	if err := st.UpsertPendingBrand(ctx, "BOSCH", alpha.ID, 0); err != nil {
		t.Fatalf("UpsertPendingBrand alpha: %v", err)
	}
	if err := st.UpsertPendingBrand(ctx, "bosch", beta.ID, 0); err != nil {
		t.Fatalf("UpsertPendingBrand beta: %v", err)
	}
	if err := st.UpsertPendingBrand(ctx, "Makita", gamma.ID, 0); err != nil {
		t.Fatalf("UpsertPendingBrand gamma: %v", err)
	}

	brand, err := st.CreateBrand(ctx, "Bosch", "Robert Bosch GmbH")
	if err != nil {
		t.Fatalf("CreateBrand: %v", err)
	}

	open, err := st.ListPendingBrands(ctx, store.PendingOpen)
	if err != nil {
		t.Fatalf("ListPendingBrands: %v", err)
	}
	var target int64
	for _, p := range open {
		if p.ProviderID == alpha.ID {
			target = p.ID
		}
	}

	resolved, err := st.ResolvePendingBrand(ctx, target, brand.ID, store.PendingValidated)
	if err != nil {
		t.Fatalf("ResolvePendingBrand: %v", err)
	}
	if resolved != 2 {
		t.Fatalf("resolved %d entries, want 2", resolved)
	}

	stillOpen, err := st.ListPendingBrands(ctx, store.PendingOpen)
	if err != nil {
		t.Fatalf("ListPendingBrands after resolve: %v", err)
	}
	if len(stillOpen) != 1 || stillOpen[0].RawLabel != "Makita" {
		t.Fatalf("unexpected open entries after resolve: %+v", stillOpen)
	}

	validated, err := st.ListPendingBrands(ctx, store.PendingValidated)
	if err != nil {
		t.Fatalf("ListPendingBrands validated: %v", err)
	}
	for _, p := range validated {
		if p.ValidatedBrandID != brand.ID {
			t.Fatalf("entry %d not linked to brand %d: %+v", p.ID, brand.ID, p)
		}
	}
}

func TestAddBrandAliasDeduplicatesUnderNormalization(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	brand, err := st.CreateBrand(ctx, "Bosch", "")
	if err != nil {
		t.Fatalf("CreateBrand: %v", err)
	}
	if err := st.AddBrandAlias(ctx, brand.ID, "BOSCH GmbH"); err != nil {
		t.Fatalf("AddBrandAlias: %v", err)
	}
	// Same alias in different case, and the canonical name itself: no-ops.
	if err := st.AddBrandAlias(ctx, brand.ID, "bosch gmbh"); err != nil {
		t.Fatalf("AddBrandAlias duplicate: %v", err)
	}
	if err := st.AddBrandAlias(ctx, brand.ID, "Bosch"); err != nil {
		t.Fatalf("AddBrandAlias canonical: %v", err)
	}

	got, err := st.GetBrand(ctx, brand.ID)
	if err != nil {
		t.Fatalf("GetBrand: %v", err)
	}
	aliases := got.AliasList()
	if len(aliases) != 1 || aliases[0] != "BOSCH GmbH" {
		t.Fatalf("unexpected aliases: %v", aliases)
	}
}

func TestFindProductByAnyKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id, err := st.CreateProduct(ctx, &store.Product{
		Reference:     "WRENCH-01",
		Name:          "Torque Wrench",
		Barcode:       "4001234567890",
		ExtraBarcodes: "12345678,98765432",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	product, matched, err := st.FindProductByAnyKey(ctx, []string{"0000000", "98765432"})
	if err != nil {
		t.Fatalf("FindProductByAnyKey: %v", err)
	}
	if product == nil || product.ID != id {
		t.Fatalf("product not found via extra barcode")
	}
	if matched != "98765432" {
		t.Fatalf("matched key = %q, want 98765432", matched)
	}

	product, matched, err = st.FindProductByAnyKey(ctx, []string{"4001234567890"})
	if err != nil {
		t.Fatalf("FindProductByAnyKey primary: %v", err)
	}
	if product == nil || matched != "4001234567890" {
		t.Fatalf("primary barcode lookup failed")
	}

	product, _, err = st.FindProductByAnyKey(ctx, []string{"not-there"})
	if err != nil {
		t.Fatalf("FindProductByAnyKey miss: %v", err)
	}
	if product != nil {
		t.Fatalf("expected nil product for unknown key, got %+v", product)
	}
}

func TestUpsertVendorEntryReplacesSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	entry := &store.VendorEntry{ProductKey: "12345678", ProviderID: provider.ID, Quantity: 5, Price: 9.99}
	if err := st.UpsertVendorEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertVendorEntry: %v", err)
	}
	entry.Quantity = 3
	entry.Price = 8.49
	if err := st.UpsertVendorEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertVendorEntry update: %v", err)
	}

	entries, err := st.ListVendorEntries(ctx, provider.ID)
	if err != nil {
		t.Fatalf("ListVendorEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single snapshot row, got %d", len(entries))
	}
	if entries[0].Quantity != 3 || entries[0].Price != 8.49 || entries[0].Currency != "EUR" {
		t.Fatalf("snapshot not replaced: %+v", entries[0])
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)

	payload := []byte("Matnr\tName\n12345678\tWidget\n")
	id, err := st.AddAttachment(ctx, &store.Attachment{
		RunID:   run.ID,
		Name:    "feed.txt",
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}

	attachments, err := st.ListAttachments(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListAttachments: %v", err)
	}
	if len(attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(attachments))
	}
	a := attachments[0]
	if a.Kind != store.AttachmentRaw || a.State != store.AttachmentDownloaded {
		t.Fatalf("defaults not applied: kind=%q state=%q", a.Kind, a.State)
	}
	if a.Size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", a.Size, len(payload))
	}
	if len(a.Payload) != 0 {
		t.Fatal("list should not load payloads")
	}

	got, err := st.AttachmentPayload(ctx, id)
	if err != nil {
		t.Fatalf("AttachmentPayload: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestSaveTemplateKeepsSingleActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	tplA := newTestTemplate("first")
	tplB := newTestTemplate("second")

	if _, err := st.SaveTemplate(ctx, provider.ID, tplA, true); err != nil {
		t.Fatalf("SaveTemplate first: %v", err)
	}
	if _, err := st.SaveTemplate(ctx, provider.ID, tplB, true); err != nil {
		t.Fatalf("SaveTemplate second: %v", err)
	}

	active, err := st.ActiveTemplate(ctx, provider.ID)
	if err != nil {
		t.Fatalf("ActiveTemplate: %v", err)
	}
	if active == nil || active.Name != "second" {
		t.Fatalf("active template = %+v, want second", active)
	}

	templates, actives, err := st.ListTemplates(ctx, provider.ID)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	activeCount := 0
	for _, isActive := range actives {
		if isActive {
			activeCount++
		}
	}
	if len(templates) != 2 || activeCount != 1 {
		t.Fatalf("expected 2 templates with 1 active, got %d/%d", len(templates), activeCount)
	}
}

func TestFailStuckRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)
	if err := st.MarkRunRunning(ctx, run.ID); err != nil {
		t.Fatalf("MarkRunRunning: %v", err)
	}

	// Zero max age treats every running run as stuck.
	failed, err := st.FailStuckRuns(ctx, 0)
	if err != nil {
		t.Fatalf("FailStuckRuns: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed %d runs, want 1", failed)
	}
	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != store.RunFailed || got.LastError == "" {
		t.Fatalf("stuck run not failed: %+v", got)
	}
}
