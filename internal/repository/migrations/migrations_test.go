package migrations

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateUpSQLite(t *testing.T) {
	db := openMemory(t)

	if err := CheckStatus(db, SQLite); err == nil {
		t.Error("fresh database should need migration")
	}
	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("second MigrateUp should be a no-op: %v", err)
	}
	if err := CheckStatus(db, SQLite); err != nil {
		t.Errorf("CheckStatus after migration: %v", err)
	}

	for _, table := range []string{"items", "users"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestUnknownDialect(t *testing.T) {
	db := openMemory(t)
	if err := MigrateUp(db, Dialect("oracle")); err == nil {
		t.Error("expected error for unknown dialect")
	}
}
