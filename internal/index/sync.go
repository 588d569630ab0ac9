package index

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/notehub/internal/checksum"
	"github.com/starford/notehub/internal/models"
)

// Fixtures is the layout of the fixtures file.
type Fixtures struct {
	Notes []models.Note `yaml:"notes"`
}

// SyncResult counts the changes made by one Sync.
type SyncResult struct {
	Upserted int
	Removed  int
	Skipped  int
}

// Changed reports whether the sync modified the store.
func (r SyncResult) Changed() bool { return r.Upserted > 0 || r.Removed > 0 }

// LoadFixtures reads the fixtures file at path. A missing file yields no notes.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Fixtures{}, nil
	}
	if err != nil {
		return Fixtures{}, fmt.Errorf("index: read fixtures: %w", err)
	}
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixtures{}, fmt.Errorf("index: parse fixtures: %w", err)
	}
	return fx, nil
}

// Sync brings the fixture notes of the store in line with the fixtures file:
//   - new/changed fixtures are upserted
//   - fixture notes no longer in the file are deleted
//
// Notes created through the API are left alone. Invalid fixtures are skipped.
func Sync(db NoteIndex, path string, logger *slog.Logger) (SyncResult, error) {
	var res SyncResult
	fx, err := LoadFixtures(path)
	if err != nil {
		return res, err
	}

	checksums, err := db.FixtureChecksums()
	if err != nil {
		return res, err
	}

	seen := make(map[string]struct{}, len(fx.Notes))
	for _, n := range fx.Notes {
		if n.ID == "" {
			logger.Warn("sync: fixture without id skipped", slog.String("title", n.Title))
			res.Skipped++
			continue
		}
		if err := (models.NoteDraft{Title: n.Title, Content: n.Content, Tag: n.Tag}).Validate(); err != nil {
			logger.Warn("sync: invalid fixture skipped", slog.String("id", n.ID), slog.String("error", err.Error()))
			res.Skipped++
			continue
		}
		seen[n.ID] = struct{}{}

		// The checksum covers the file contents, before times are defaulted.
		cs := checksum.Note(n)
		if checksums[n.ID] == cs {
			continue
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now()
		}
		if n.UpdatedAt.IsZero() {
			n.UpdatedAt = n.CreatedAt
		}
		if err := db.UpsertFixture(n, cs); err != nil {
			logger.Warn("sync: upsert failed", slog.String("id", n.ID), slog.String("error", err.Error()))
			continue
		}
		res.Upserted++
		logger.Debug("sync: fixture loaded", slog.String("id", n.ID))
	}

	for id := range checksums {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := db.DeleteNote(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		res.Removed++
		logger.Debug("sync: removed stale fixture", slog.String("id", id))
	}

	return res, nil
}
