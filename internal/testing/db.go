// Package testing provides testing utilities and helpers for the ledgerkeep project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/ledgerkeep/ledgerkeep/internal/database"
)

// NewTestDB creates a migrated ledger database on a temporary file.
// Returns the database and an idempotent cleanup function; tests should
// register the cleanup with t.Cleanup.
func NewTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test_ledger_*.db")
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			fmt.Printf("Warning: failed to close test database: %v\n", err)
		}
		_ = os.Remove(tmpPath)
	}

	return db, cleanup
}
