package index

import (
	"github.com/starford/notehub/internal/models"
)

// NoteIndex defines the storage operations of the local notes service.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	InsertNote(n models.Note) error
	UpsertFixture(n models.Note, checksum string) error
	GetNote(id string) (*models.Note, error)
	DeleteNote(id string) (*models.Note, error)
	ListNotes(f ListFilter) ([]models.Note, int, error)
	FixtureChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
