package api

import (
	"github.com/starford/notehub/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Tag     string `json:"tag"`
}

// Note is the note response type (aliased from the domain layer).
type Note = models.Note

// NotesPage is the listing response type (aliased from the domain layer).
type NotesPage = models.NotesPage
