package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/models"
)

// ListFilter selects one page of notes.
type ListFilter struct {
	Search  string
	Tag     models.TagFilter
	Page    int
	PerPage int
}

const noteColumns = `id, title, content, tag, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.Note, error) {
	var n models.Note
	err := s.Scan(&n.ID, &n.Title, &n.Content, &n.Tag, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// InsertNote stores a new note created through the API.
func (db *DB) InsertNote(n models.Note) error {
	_, err := db.conn.Exec(`
		INSERT INTO notes (id, title, content, tag, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'api', ?, ?)
	`, n.ID, n.Title, n.Content, n.Tag, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("index: insert note: %w", err)
	}
	return nil
}

// UpsertFixture inserts or replaces a note loaded from the fixtures file.
func (db *DB) UpsertFixture(n models.Note, checksum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO notes (id, title, content, tag, source, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'fixture', ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			content    = excluded.content,
			tag        = excluded.tag,
			source     = 'fixture',
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, n.Content, n.Tag, checksum, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert fixture: %w", err)
	}
	return nil
}

// GetNote returns the note with id or apperr.ErrNotFound.
func (db *DB) GetNote(id string) (*models.Note, error) {
	n, err := scanNote(db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// DeleteNote removes the note with id and returns it, or apperr.ErrNotFound.
func (db *DB) DeleteNote(id string) (*models.Note, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	n, err := scanNote(tx.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("index: delete note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit: %w", err)
	}
	return &n, nil
}

// ListNotes returns one page of notes, newest first, and the total page count.
// Search matches title or content case-insensitively; an absent or empty tag
// does not filter.
func (db *DB) ListNotes(f ListFilter) ([]models.Note, int, error) {
	if f.PerPage < 1 {
		f.PerPage = 12
	}
	if f.Page < 1 {
		f.Page = 1
	}

	var where []string
	var args []any
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if tag, ok := f.Tag.Name(); ok && tag != "" {
		where = append(where, `tag = ?`)
		args = append(args, tag)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}
	totalPages := (total + f.PerPage - 1) / f.PerPage

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes`+clause+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, f.PerPage, (f.Page-1)*f.PerPage)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, totalPages, rows.Err()
}

// FixtureChecksums returns the checksum of every note loaded from fixtures, by id.
func (db *DB) FixtureChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes WHERE source = 'fixture'`)
	if err != nil {
		return nil, fmt.Errorf("index: fixture checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func now() time.Time { return time.Now().UTC() }
