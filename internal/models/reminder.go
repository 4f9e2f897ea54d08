package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a dated to-do with a time of day ("15:04") and a completion
// flag the user can toggle.
type Reminder struct {
	LocalKey  string    `json:"local_key"`
	Date      DateKey   `json:"date"`
	Text      string    `json:"text"`
	TimeOfDay string    `json:"time_of_day"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// NewReminder creates a reminder with a fresh local key.
func NewReminder(date DateKey, text, timeOfDay string) *Reminder {
	return &Reminder{
		LocalKey:  uuid.NewString(),
		Date:      date,
		Text:      text,
		TimeOfDay: timeOfDay,
		CreatedAt: time.Now().UTC(),
	}
}
