package export_test

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/feedmill/feedmill/internal/export"
	"github.com/feedmill/feedmill/internal/store"
	"github.com/feedmill/feedmill/internal/testsupport"
)

func TestErrorRowsExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)
	err := st.AddStagingRow(ctx, &store.StagingRow{
		RunID:      run.ID,
		ProviderID: provider.ID,
		RowNumber:  4,
		Key:        "12345678",
		ErrorType:  store.ErrNoBrand,
		RawData:    "12345678;Widget;NoSuchBrand",
	})
	if err != nil {
		t.Fatalf("AddStagingRow: %v", err)
	}

	exporter := export.New(st, cfg)
	path, err := exporter.ErrorRows(ctx, run.ID)
	if err != nil {
		t.Fatalf("ErrorRows: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("export missing UTF-8 BOM")
	}
	text := string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "line;key;error;raw" {
		t.Fatalf("header = %q", lines[0])
	}
	// The raw cell contains semicolons, so the writer must quote it.
	if !strings.Contains(lines[1], `"12345678;Widget;NoSuchBrand"`) {
		t.Fatalf("raw data not quoted: %q", lines[1])
	}
	if !strings.HasPrefix(lines[1], "4;12345678;no_brand;") {
		t.Fatalf("row = %q", lines[1])
	}
}

func TestBrandsExportWithoutBOM(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	brand, err := st.CreateBrand(ctx, "Bosch", "Robert Bosch GmbH")
	if err != nil {
		t.Fatalf("CreateBrand: %v", err)
	}
	if err := st.AddBrandAlias(ctx, brand.ID, "BOSCH Tools"); err != nil {
		t.Fatalf("AddBrandAlias: %v", err)
	}

	exporter := export.New(st, cfg)
	exporter.WithBOM = false
	path, err := exporter.Brands(ctx)
	if err != nil {
		t.Fatalf("Brands: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("unexpected BOM")
	}
	if !strings.Contains(string(data), "Bosch;Robert Bosch GmbH;BOSCH Tools") {
		t.Fatalf("brand row missing: %q", data)
	}
}

func TestProvidersExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewProvider(t, st, "acme", "Acme")
	exporter := export.New(st, cfg)
	path, err := exporter.Providers(ctx)
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "acme;Acme;Matnr") {
		t.Fatalf("provider row missing: %q", data)
	}
}
