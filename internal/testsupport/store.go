package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"hackreview/internal/state"
)

// MustOpenStore opens a SQLite state store in a temp directory and
// registers cleanup.
func MustOpenStore(t testing.TB) *state.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data", state.DatabaseFileName)
	store, err := state.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("state.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustPut writes records and fails the test on error.
func MustPut(t testing.TB, store state.Store, records ...state.Record) {
	t.Helper()

	for _, record := range records {
		if err := store.Put(context.Background(), record); err != nil {
			t.Fatalf("store.Put %s/%s: %v", record.SubmissionID, record.Stage, err)
		}
	}
}
