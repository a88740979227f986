package testsupport

import (
	"context"
	"testing"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProvider creates a provider for tests using the given store.
func NewProvider(t testing.TB, st *store.Store, code, name string) *store.Provider {
	t.Helper()

	provider, err := st.CreateProvider(context.Background(), &store.Provider{Code: code, Name: name})
	if err != nil {
		t.Fatalf("store.CreateProvider: %v", err)
	}
	return provider
}

// NewRun enqueues a run for tests.
func NewRun(t testing.TB, st *store.Store, providerID int64) *store.Run {
	t.Helper()

	run, err := st.EnqueueRun(context.Background(), providerID, "")
	if err != nil {
		t.Fatalf("store.EnqueueRun: %v", err)
	}
	return run
}
