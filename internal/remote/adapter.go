// Package remote is the thin client over the remote relational backend. It
// translates between the local entity shapes and rows scoped by owner, and
// performs the upsert/select calls the sync engine orchestrates.
//
// Every entity upsert targets the (owner_id, local_key) unique constraint,
// so replaying the same snapshot is a no-op after the first call. Every
// select filters by owner; cross-owner leakage is prevented at the query
// boundary.
package remote

import (
	"context"

	"github.com/verdure-app/verdure/internal/models"
)

// Adapter is the surface consumed by the sync engine, the migration
// reconciler and the telemetry queue.
type Adapter interface {
	// Collection upserts. Each call replaces rows matching
	// (owner, local_key) and inserts the rest, atomically per collection.
	UpsertPlants(ctx context.Context, owner string, plants []models.Plant) error
	UpsertNotes(ctx context.Context, owner string, notes []models.Note) error
	UpsertReminders(ctx context.Context, owner string, reminders []models.Reminder) error

	// UpsertSettings is a singleton upsert keyed by owner alone.
	UpsertSettings(ctx context.Context, owner string, settings models.UserSettings) error

	// Owner-scoped selects.
	SelectPlants(ctx context.Context, owner string) ([]models.Plant, error)
	SelectNotes(ctx context.Context, owner string) ([]models.Note, error)
	SelectReminders(ctx context.Context, owner string) ([]models.Reminder, error)

	// SelectSettings returns nil when the owner has no settings row yet.
	SelectSettings(ctx context.Context, owner string) (*models.UserSettings, error)

	// CountPlants is the lightweight existence probe used by the
	// migration reconciler.
	CountPlants(ctx context.Context, owner string) (int, error)

	// InsertEvents appends a telemetry batch in a single statement.
	// Events are append-only; there is no idempotency key.
	InsertEvents(ctx context.Context, events []models.Event) error

	Close() error
}
