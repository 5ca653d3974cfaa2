// Package storagetest opens throwaway SQLite-backed stores for tests.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"newhome-tracker/storage"
)

// DSN returns a modernc SQLite DSN for a file under dir with the pragmas the
// store expects.
func DSN(dir string) string {
	return filepath.Join(dir, "newhome.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

// NewStore returns a migrated SQLStore on a temporary SQLite file that is
// removed when the test ends.
func NewStore(t testing.TB) *storage.SQLStore {
	t.Helper()

	db, err := sql.Open(storage.DriverSQLite, DSN(t.TempDir()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := storage.NewSQLStore(context.Background(), db, storage.DriverSQLite)
	if err != nil {
		_ = db.Close()
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
