package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/docvault/internal/config"
	"github.com/xxxsen/docvault/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "docvault",
		Password: "docvault_pass",
		DBName:   "docvault_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// WipeUser removes everything a test created under the given user id so reruns
// start clean.
func WipeUser(t *testing.T, conn *sql.DB, userID string) {
	t.Helper()
	for _, stmt := range []string{
		`DELETE FROM group_members WHERE group_id IN (SELECT id FROM groups WHERE user_id = $1)`,
		`DELETE FROM groups WHERE user_id = $1`,
		`DELETE FROM documents WHERE user_id = $1`,
	} {
		if _, err := conn.Exec(stmt, userID); err != nil {
			t.Fatalf("wipe user rows: %v", err)
		}
	}
}
