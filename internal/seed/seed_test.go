package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/feedmill/feedmill/internal/seed"
	"github.com/feedmill/feedmill/internal/testsupport"
)

const sampleSeed = `providers:
  - code: acme
    name: Acme Tools
    merge_key: Matnr
    file_pattern: "acme_*"
    skip_existing: true
  - code: globex
    name: Globex
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestApplyIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	f, err := seed.Load(writeSeed(t, sampleSeed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	result, err := seed.Apply(ctx, st, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 {
		t.Fatalf("first apply: %+v", result)
	}

	// Re-applying updates by code and never duplicates.
	f.Providers[0].Name = "Acme Tools GmbH"
	result, err = seed.Apply(ctx, st, f)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if result.Created != 0 || result.Updated != 2 {
		t.Fatalf("second apply: %+v", result)
	}

	providers, err := st.ListProviders(ctx)
	if err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].Name != "Acme Tools GmbH" || !providers[0].SkipExisting {
		t.Fatalf("update not applied: %+v", providers[0])
	}
}

func TestLoadRejectsBadSeeds(t *testing.T) {
	if _, err := seed.Load(writeSeed(t, "providers:\n  - name: no code\n")); err == nil {
		t.Fatal("expected error for missing code")
	}
	if _, err := seed.Load(writeSeed(t, "providers:\n  - code: x\n  - code: x\n")); err == nil {
		t.Fatal("expected error for duplicate code")
	}
	if _, err := seed.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
