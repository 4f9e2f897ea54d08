package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is free text attached to a calendar date. Notes are immutable once
// created; the only mutations are create and delete.
type Note struct {
	LocalKey  string    `json:"local_key"`
	Date      DateKey   `json:"date"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNote creates a note with a fresh local key.
func NewNote(date DateKey, text string) *Note {
	return &Note{
		LocalKey:  uuid.NewString(),
		Date:      date,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}
