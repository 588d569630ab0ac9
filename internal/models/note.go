// Package models defines the domain types shared by the notehub client and the local service.
package models

import (
	"encoding/json"
	"time"
)

// Note is a single note as returned by the notes service.
type Note struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Tag       string    `json:"tag" yaml:"tag"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// NotesPage is one page of a listing.
type NotesPage struct {
	Notes      []Note `json:"notes"`
	TotalPages int    `json:"totalPages"`
}

// TagFilter restricts a listing to one tag. The zero value means no filter.
//
// An absent filter and a present empty-string filter are different values.
type TagFilter struct {
	name string
	set  bool
}

// AnyTag returns the absent filter.
func AnyTag() TagFilter { return TagFilter{} }

// WithTag returns a filter on name.
func WithTag(name string) TagFilter { return TagFilter{name: name, set: true} }

// Name returns the tag and whether the filter is present.
func (f TagFilter) Name() (string, bool) { return f.name, f.set }

// IsSet reports whether the filter is present.
func (f TagFilter) IsSet() bool { return f.set }

// String returns the tag name, or "all" when absent.
func (f TagFilter) String() string {
	if !f.set {
		return "all"
	}
	return f.name
}

// MarshalJSON encodes an absent filter as null.
func (f TagFilter) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.name)
}

// UnmarshalJSON decodes null as the absent filter.
func (f *TagFilter) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = TagFilter{}
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*f = WithTag(name)
	return nil
}

// ListQuery holds the inputs of a listing request. Page is 1-based.
type ListQuery struct {
	Search string
	Page   int
	Tag    TagFilter
}
