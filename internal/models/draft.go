package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Tags accepted on creation.
const (
	TagWork     = "Work"
	TagPersonal = "Personal"
	TagMeeting  = "Meeting"
	TagShopping = "Shopping"
	TagTodo     = "Todo"
)

// Tags lists the accepted tags in display order.
var Tags = []string{TagWork, TagPersonal, TagMeeting, TagShopping, TagTodo}

// NoteDraft is the payload of a create request.
type NoteDraft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Tag     string `json:"tag"`
}

// DefaultDraft returns the values a fresh creation form starts with.
func DefaultDraft() NoteDraft {
	return NoteDraft{Tag: TagTodo}
}

// Validate checks the draft against the creation rules.
// The returned error is a validation.Errors keyed by JSON field name.
func (d NoteDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title,
			validation.Required.Error("Title is required"),
			validation.RuneLength(3, 50).Error("Title must be between 3 and 50 characters"),
		),
		validation.Field(&d.Content,
			validation.RuneLength(0, 500).Error("Content is too long"),
		),
		validation.Field(&d.Tag,
			validation.Required.Error("Tag is required"),
			validation.In(TagWork, TagPersonal, TagMeeting, TagShopping, TagTodo).Error("Tag is not supported"),
		),
	)
}
