// Package testutil provides shared test helpers for the local notes service.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/notehub/internal/index"
	"github.com/starford/notehub/internal/models"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notehub-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedNotes inserts notes into db, one minute apart so listings are ordered
// newest first in reverse of notes.
func SeedNotes(t *testing.T, db *index.DB, notes ...models.Note) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, n := range notes {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			n.UpdatedAt = n.CreatedAt
		}
		if err := db.InsertNote(n); err != nil {
			t.Fatalf("seed %s: %v", n.ID, err)
		}
	}
}
