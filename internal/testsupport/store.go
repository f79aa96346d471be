package testsupport

import (
	"testing"

	"vodwatch/internal/config"
	"vodwatch/internal/ledger"
)

// MustOpenLedger opens the ledger for cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.OpenFromConfig(cfg)
	if err != nil {
		t.Fatalf("ledger.OpenFromConfig: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
