package testutil

import (
	"database/sql"
	"testing"

	"pantrypal-api/internal/repository/migrations"

	_ "modernc.org/sqlite"
)

// NewTestDB returns a migrated in-memory SQLite database closed on cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	t.Cleanup(func() { db.Close() })

	if err := migrations.MigrateUp(db, migrations.SQLite); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
