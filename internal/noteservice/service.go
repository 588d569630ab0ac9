// Package noteservice implements the business rules of the local notes service
// on top of the SQLite index.
package noteservice

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/index"
	"github.com/starford/notehub/internal/models"
)

// Page size bounds accepted by ListNotes.
const (
	DefaultPerPage = 12
	MaxPerPage     = 100
)

// ListParams are the inputs of a listing request.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Tag     string
}

// Service coordinates validation and index operations.
type Service struct {
	db    index.NoteIndex
	now   func() time.Time
	newID func() string
}

// NewService creates a new note service.
func NewService(db index.NoteIndex) *Service {
	return &Service{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// ListNotes returns one page of notes. Out-of-range paging values are clamped;
// an empty tag does not filter.
func (s *Service) ListNotes(_ context.Context, p ListParams) (*models.NotesPage, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage < 1:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	tag := models.AnyTag()
	if t := strings.TrimSpace(p.Tag); t != "" {
		tag = models.WithTag(t)
	}

	notes, totalPages, err := s.db.ListNotes(index.ListFilter{
		Search:  p.Search,
		Tag:     tag,
		Page:    p.Page,
		PerPage: p.PerPage,
	})
	if err != nil {
		return nil, err
	}
	return &models.NotesPage{Notes: nonNilSlice(notes), TotalPages: totalPages}, nil
}

// GetNote returns the note with id or apperr.ErrNotFound.
func (s *Service) GetNote(_ context.Context, id string) (*models.Note, error) {
	return s.db.GetNote(id)
}

// CreateNote validates d and stores it as a new note. Invalid drafts yield an
// *apperr.ValidationError.
func (s *Service) CreateNote(_ context.Context, d models.NoteDraft) (*models.Note, error) {
	d.Title = strings.TrimSpace(d.Title)
	if err := d.Validate(); err != nil {
		return nil, apperr.NewValidation(err)
	}
	now := s.now()
	n := models.Note{
		ID:        s.newID(),
		Title:     d.Title,
		Content:   d.Content,
		Tag:       d.Tag,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.InsertNote(n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote removes the note with id and returns it, or apperr.ErrNotFound.
func (s *Service) DeleteNote(_ context.Context, id string) (*models.Note, error) {
	return s.db.DeleteNote(id)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
