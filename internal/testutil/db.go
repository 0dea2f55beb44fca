// Package testutil provides database test helpers.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hlop3z/applyalter/internal/instance"
)

// TempSQLite returns the path of a fresh file-based SQLite database in the
// test's temporary directory. File databases survive connection turnover, so
// state can be inspected after a run has closed its connections.
func TempSQLite(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// Open opens a SQLite database file for seeding and assertions.
// The connection is automatically closed when the test completes.
func Open(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open sqlite %s: %v", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping sqlite %s: %v", path, err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewSQLiteHandle creates an instance handle over a fresh file-based SQLite
// database and returns it with the database path. The handle opens lazily,
// exactly as in a real run.
func NewSQLiteHandle(t *testing.T, id, instType string) (*instance.Handle, string) {
	t.Helper()

	path := TempSQLite(t)
	h, err := instance.NewHandle(instance.Config{
		ID:      id,
		Type:    instType,
		URL:     path,
		Dialect: "sqlite",
	})
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h, path
}

// MustExec executes SQL against the database and fails the test on error.
func MustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// Count returns the single integer the query yields.
func Count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}
