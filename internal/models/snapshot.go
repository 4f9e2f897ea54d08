package models

import "time"

// Snapshot is the full set of collections considered for a single sync-up
// call, and the payload returned by sync-down. It is also the unit of local
// persistence: the whole snapshot is serialized to one blob.
//
// PendingEvents is the telemetry queue's durable backlog; it rides in the
// same blob but is never sent through the entity sync path.
type Snapshot struct {
	Plants        []Plant                `json:"plants"`
	Notes         map[DateKey][]Note     `json:"notes"`
	Reminders     map[DateKey][]Reminder `json:"reminders"`
	Settings      *UserSettings          `json:"settings,omitempty"`
	LastSyncedAt  *time.Time             `json:"last_synced_at,omitempty"`
	PendingEvents []Event                `json:"pending_events,omitempty"`
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Notes:     make(map[DateKey][]Note),
		Reminders: make(map[DateKey][]Reminder),
	}
}

// Clone returns a deep copy. The sync engine serializes a clone so the UI
// can keep mutating the store while an upload is in flight.
func (s *Snapshot) Clone() *Snapshot {
	out := NewSnapshot()
	out.Plants = make([]Plant, 0, len(s.Plants))
	for _, p := range s.Plants {
		out.Plants = append(out.Plants, *p.Clone())
	}
	for date, notes := range s.Notes {
		out.Notes[date] = append([]Note(nil), notes...)
	}
	for date, rs := range s.Reminders {
		out.Reminders[date] = append([]Reminder(nil), rs...)
	}
	if s.Settings != nil {
		c := *s.Settings
		out.Settings = &c
	}
	out.LastSyncedAt = cloneTime(s.LastSyncedAt)
	for _, e := range s.PendingEvents {
		out.PendingEvents = append(out.PendingEvents, e.Clone())
	}
	return out
}

// Normalize makes sure maps are non-nil after JSON decoding.
func (s *Snapshot) Normalize() {
	if s.Notes == nil {
		s.Notes = make(map[DateKey][]Note)
	}
	if s.Reminders == nil {
		s.Reminders = make(map[DateKey][]Reminder)
	}
}
