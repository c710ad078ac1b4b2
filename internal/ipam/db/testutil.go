package db

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) (*sql.DB, Store) {
	t.Helper()

	// Shared cache mode so every connection sees the same database
	db, err := sql.Open("sqlite3", "file::memory:?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Single connection for deterministic test behavior
	db.SetMaxOpenConns(1)

	store := NewStoreFromDB(db)
	if err := store.(*SQLStore).Setup(context.Background()); err != nil {
		db.Close()
		t.Fatalf("failed to setup test database schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db, store
}

// TruncateTables removes all data from tables while preserving schema
func TruncateTables(t *testing.T, db *sql.DB) {
	t.Helper()

	tables := []string{"allocations", "vpcs"}
	for _, table := range tables {
		_, err := db.Exec("DELETE FROM " + table)
		if err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}
