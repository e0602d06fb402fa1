// Package repotest opens migrated in-memory databases for tests.
package repotest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/repositories/repomanager"
)

// Open returns a fresh in-memory SQLite database with every migration
// applied. The handle is closed when the test ends.
func Open(t testing.TB) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()

	db, err := dbx.Open(dbx.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rm, err := repomanager.NewSQLRepositoryManager(dbx.SQLite)
	if err != nil {
		t.Fatalf("repository manager: %v", err)
	}
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db, rm
}
