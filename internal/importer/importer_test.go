package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/feedmill/feedmill/internal/brands"
	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/importer"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/mapping"
	"github.com/feedmill/feedmill/internal/staging"
	"github.com/feedmill/feedmill/internal/store"
	"github.com/feedmill/feedmill/internal/testsupport"
)

func newImporter(t *testing.T) (*importer.Importer, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	resolver := brands.NewResolver(st, cfg, logging.NewNop())
	processor := staging.NewProcessor(st, resolver, cfg, logging.NewNop())
	return importer.New(st, processor, cfg, logging.NewNop()), st, cfg
}

func writeInbox(t *testing.T, cfg *config.Config, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.Paths.InboxDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write inbox file: %v", err)
	}
}

func saveTemplate(t *testing.T, st *store.Store, providerID int64, lines []mapping.Line) {
	t.Helper()
	_, err := st.SaveTemplate(context.Background(), providerID, &mapping.Template{
		Name:  "default",
		Lines: lines,
	}, true)
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
}

func TestExecuteMergesAndImports(t *testing.T) {
	im, st, cfg := newImporter(t)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)
	saveTemplate(t, st, provider.ID, []mapping.Line{
		{SourceColumn: "Matnr", TargetField: staging.FieldKey, Required: true, Active: true},
		{SourceColumn: "Name", TargetField: staging.FieldName, Active: true},
		{SourceColumn: "acme_tax", TargetField: staging.FieldPrice, Active: true},
	})

	writeInbox(t, cfg, "acme_base.txt", "Matnr\tName\n12345678\tWidget\n87654321\tGasket\n")
	// Headerless tax file: leading digits are the key, the last float the value.
	writeInbox(t, cfg, "acme_tax.txt", "12345678 tax rate 19,00\nnoise line\n87654321 tax rate 7,50\n")

	result, err := im.Execute(ctx, run)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.FilesDownloaded != 2 || result.FilesImported != 2 {
		t.Fatalf("file counts: %+v", result)
	}
	if result.Counts.Created != 2 || result.Counts.Errors != 0 {
		t.Fatalf("row counts: %+v", result.Counts)
	}

	product, _, err := st.FindProductByAnyKey(ctx, []string{"12345678"})
	if err != nil {
		t.Fatalf("FindProductByAnyKey: %v", err)
	}
	if product == nil || product.Name != "Widget" || product.Price != 19.00 {
		t.Fatalf("merged value not imported: %+v", product)
	}

	attachments, err := st.ListAttachments(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListAttachments: %v", err)
	}
	var raw, processed int
	for _, a := range attachments {
		switch a.Kind {
		case store.AttachmentRaw:
			raw++
		case store.AttachmentProcessed:
			processed++
			if a.State != store.AttachmentImported {
				t.Fatalf("processed attachment state = %q", a.State)
			}
		}
	}
	if raw != 2 || processed != 1 {
		t.Fatalf("attachment counts: raw=%d processed=%d", raw, processed)
	}
}

func TestExecuteRequiresActiveTemplate(t *testing.T) {
	im, st, cfg := newImporter(t)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)
	writeInbox(t, cfg, "acme.txt", "Matnr\tName\n12345678\tWidget\n")

	_, err := im.Execute(ctx, run)
	if !errors.Is(err, mapping.ErrNoTemplate) {
		t.Fatalf("error = %v, want ErrNoTemplate", err)
	}
}

func TestExecuteFailsWithoutFeedFiles(t *testing.T) {
	im, st, _ := newImporter(t)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)
	saveTemplate(t, st, provider.ID, []mapping.Line{
		{SourceColumn: "Matnr", TargetField: staging.FieldKey, Required: true, Active: true},
	})

	_, err := im.Execute(ctx, run)
	if err == nil {
		t.Fatal("expected error for empty inbox")
	}
}

func TestExecuteFailsOnEmptyBaseFile(t *testing.T) {
	im, st, cfg := newImporter(t)
	ctx := context.Background()

	provider := testsupport.NewProvider(t, st, "acme", "Acme")
	run := testsupport.NewRun(t, st, provider.ID)
	saveTemplate(t, st, provider.ID, []mapping.Line{
		{SourceColumn: "Matnr", TargetField: staging.FieldKey, Required: true, Active: true},
	})
	// Header only: zero data rows must abort, not import nothing.
	writeInbox(t, cfg, "acme.txt", "Matnr\tName\n")

	_, err := im.Execute(ctx, run)
	if err == nil {
		t.Fatal("expected error for empty base file")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	if err := importer.CheckDiskSpace(t.TempDir(), 1); err != nil {
		t.Fatalf("CheckDiskSpace small requirement: %v", err)
	}
	// No filesystem has an exabyte free.
	if err := importer.CheckDiskSpace(t.TempDir(), 1<<40); err == nil {
		t.Fatal("expected failure for absurd requirement")
	}
	if err := importer.CheckDiskSpace("/does/not/exist", 1); err == nil {
		t.Fatal("expected statfs error for missing path")
	}
}
