// Package localstore holds the on-device application snapshot. It is the
// authoritative state while the app runs; the remote backend is a lagging
// replica. Every mutating operation writes the whole snapshot back through
// the Persister.
package localstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/verdure-app/verdure/internal/common"
	"github.com/verdure-app/verdure/internal/models"
)

// Store is the in-memory snapshot guarded by a mutex. Mutations come from
// the single UI path; the mutex protects the sync engine's snapshot reads
// from observing a half-applied mutation.
type Store struct {
	mu        sync.Mutex
	snap      *models.Snapshot
	persister Persister
}

// Open loads the persisted snapshot and returns a ready store.
func Open(p Persister) (*Store, error) {
	snap, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load local store: %w", err)
	}
	return &Store{snap: snap, persister: p}, nil
}

// Snapshot returns a deep copy of the current state. Callers can serialize
// or inspect it without holding the store lock.
func (s *Store) Snapshot() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

func (s *Store) persistLocked() error {
	if err := s.persister.Save(s.snap); err != nil {
		return fmt.Errorf("failed to persist local store: %w", err)
	}
	return nil
}

// AddPlant appends a plant.
func (s *Store) AddPlant(p models.Plant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Plants = append(s.snap.Plants, p)
	return s.persistLocked()
}

// UpdatePlant replaces the plant with the same local key.
func (s *Store) UpdatePlant(p models.Plant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snap.Plants {
		if s.snap.Plants[i].LocalKey == p.LocalKey {
			s.snap.Plants[i] = p
			return s.persistLocked()
		}
	}
	return common.ErrNotFound
}

// DeletePlant removes the plant with the given local key. Removal is local
// only; nothing is deleted remotely.
func (s *Store) DeletePlant(localKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snap.Plants {
		if s.snap.Plants[i].LocalKey == localKey {
			s.snap.Plants = append(s.snap.Plants[:i], s.snap.Plants[i+1:]...)
			return s.persistLocked()
		}
	}
	return common.ErrNotFound
}

// PlantCount reports how many plants the device holds.
func (s *Store) PlantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snap.Plants)
}

// ClearPlants discards the whole plant collection. Notes, reminders and
// settings are left untouched. Used by the migration "start fresh" choice.
func (s *Store) ClearPlants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Plants = nil
	return s.persistLocked()
}

// AddNote appends a note under its date.
func (s *Store) AddNote(n models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Notes[n.Date] = append(s.snap.Notes[n.Date], n)
	return s.persistLocked()
}

// DeleteNote removes a note by date and local key.
func (s *Store) DeleteNote(date models.DateKey, localKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.snap.Notes[date]
	for i := range notes {
		if notes[i].LocalKey == localKey {
			notes = append(notes[:i], notes[i+1:]...)
			if len(notes) == 0 {
				delete(s.snap.Notes, date)
			} else {
				s.snap.Notes[date] = notes
			}
			return s.persistLocked()
		}
	}
	return common.ErrNotFound
}

// NotesOn lists the notes for one date.
func (s *Store) NotesOn(date models.DateKey) []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Note(nil), s.snap.Notes[date]...)
}

// AddReminder appends a reminder under its date.
func (s *Store) AddReminder(r models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Reminders[r.Date] = append(s.snap.Reminders[r.Date], r)
	return s.persistLocked()
}

// ToggleReminder flips the completion flag and returns the new value.
func (s *Store) ToggleReminder(date models.DateKey, localKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.snap.Reminders[date]
	for i := range rs {
		if rs[i].LocalKey == localKey {
			rs[i].Done = !rs[i].Done
			return rs[i].Done, s.persistLocked()
		}
	}
	return false, common.ErrNotFound
}

// DeleteReminder removes a reminder by date and local key.
func (s *Store) DeleteReminder(date models.DateKey, localKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.snap.Reminders[date]
	for i := range rs {
		if rs[i].LocalKey == localKey {
			rs = append(rs[:i], rs[i+1:]...)
			if len(rs) == 0 {
				delete(s.snap.Reminders, date)
			} else {
				s.snap.Reminders[date] = rs
			}
			return s.persistLocked()
		}
	}
	return common.ErrNotFound
}

// RemindersOn lists the reminders for one date.
func (s *Store) RemindersOn(date models.DateKey) []models.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Reminder(nil), s.snap.Reminders[date]...)
}

// SetSettings replaces the settings singleton as a whole.
func (s *Store) SetSettings(settings models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.UpdatedAt = time.Now().UTC()
	s.snap.Settings = &settings
	return s.persistLocked()
}

// Settings returns a copy of the settings singleton, or nil if unset.
func (s *Store) Settings() *models.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Settings == nil {
		return nil
	}
	c := *s.snap.Settings
	return &c
}

// ReplaceSynced commits a downloaded payload: the synced collections are
// replaced wholesale, not merged. LastSyncedAt and the telemetry backlog
// are preserved; they are not part of the downloaded payload.
func (s *Store) ReplaceSynced(in *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := in.Clone()
	s.snap.Plants = clone.Plants
	s.snap.Notes = clone.Notes
	s.snap.Reminders = clone.Reminders
	s.snap.Settings = clone.Settings
	return s.persistLocked()
}

// SetLastSyncedAt records the time of the last successful upload.
func (s *Store) SetLastSyncedAt(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastSyncedAt = &t
	return s.persistLocked()
}

// LastSyncedAt returns the time of the last successful upload, or nil.
func (s *Store) LastSyncedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.LastSyncedAt == nil {
		return nil
	}
	c := *s.snap.LastSyncedAt
	return &c
}

// PendingEvents returns the persisted telemetry backlog.
func (s *Store) PendingEvents() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(s.snap.PendingEvents))
	for _, e := range s.snap.PendingEvents {
		out = append(out, e.Clone())
	}
	return out
}

// SetPendingEvents replaces the persisted telemetry backlog.
func (s *Store) SetPendingEvents(events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.PendingEvents = make([]models.Event, 0, len(events))
	for _, e := range events {
		s.snap.PendingEvents = append(s.snap.PendingEvents, e.Clone())
	}
	return s.persistLocked()
}
