package notesync

import (
	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/querycache"
)

// Phase is the view state machine: Idle → Loading → Success | Error, with
// Success and Error going back to Loading on a key change or a forced refetch.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// State is what a renderer needs to draw one notes view.
type State struct {
	Search string
	Page   int
	Tag    models.TagFilter
	Key    querycache.Key

	// Phase is PhaseLoading only while nothing can be shown. A refresh behind
	// shown data is reported through Fetching instead.
	Phase    Phase
	Fetching bool
	// Placeholder is set when Data belongs to the previous key.
	Placeholder bool
	Data        *models.NotesPage
	Err         error
	TotalPages  int

	CreateOpen    bool
	CreatePending bool
	CreateFailed  bool
	Draft         models.NoteDraft
}

// ShowPagination reports whether pagination controls are drawn.
func (s State) ShowPagination() bool { return s.TotalPages > 0 }

// Notes returns the notes to draw, or nil.
func (s State) Notes() []models.Note {
	if s.Data == nil {
		return nil
	}
	return s.Data.Notes
}
