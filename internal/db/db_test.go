package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB mirrors the teacher's setupBalanceTestDB: an in-memory SQLite
// connection with the real schema applied, torn down by the caller's
// deferred cleanup.
func setupTestDB(t *testing.T) (*Service, func()) {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	cleanup := func() { conn.Close() }
	return &Service{db: conn}, cleanup
}
