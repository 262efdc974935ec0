package testsupport

import (
	"context"
	"testing"

	"ferry/internal/config"
	"ferry/internal/ledger"
)

// MustOpenLedger opens the configured ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustPut writes record to l and fails the test on error.
func MustPut(t testing.TB, l ledger.Ledger, record ledger.Record) {
	t.Helper()
	if err := l.Put(context.Background(), record); err != nil {
		t.Fatalf("ledger put %s: %v", record.ArtifactID, err)
	}
}

// MustGet reads a record and fails the test on error.
func MustGet(t testing.TB, l ledger.Ledger, artifactID string) *ledger.Record {
	t.Helper()
	record, err := l.Get(context.Background(), artifactID)
	if err != nil {
		t.Fatalf("ledger get %s: %v", artifactID, err)
	}
	return record
}
