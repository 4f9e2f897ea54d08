package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/verdure-app/verdure/internal/dbx"
	"github.com/verdure-app/verdure/internal/models"
	"github.com/verdure-app/verdure/internal/remote/migrations"
)

// Postgres implements Adapter over database/sql with the pgx driver.
type Postgres struct {
	db *sql.DB
}

// Open connects to the backend and applies the embedded schema migrations.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Postgres{db: db}, nil
}

// NewWithDB wraps an existing connection without running migrations.
// Used by tests.
func NewWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// UpsertPlants replaces or inserts the owner's plant rows in one transaction.
func (p *Postgres) UpsertPlants(ctx context.Context, owner string, plants []models.Plant) error {
	query := `INSERT INTO plants (owner_id, local_key, name, care_type, watering_interval_days,
			sun_hours_target, sun_weekdays, outdoor_weekdays,
			last_watered_at, last_sun_at, last_outdoor_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (owner_id, local_key) DO UPDATE SET
			name = EXCLUDED.name,
			care_type = EXCLUDED.care_type,
			watering_interval_days = EXCLUDED.watering_interval_days,
			sun_hours_target = EXCLUDED.sun_hours_target,
			sun_weekdays = EXCLUDED.sun_weekdays,
			outdoor_weekdays = EXCLUDED.outdoor_weekdays,
			last_watered_at = EXCLUDED.last_watered_at,
			last_sun_at = EXCLUDED.last_sun_at,
			last_outdoor_at = EXCLUDED.last_outdoor_at`

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, plant := range plants {
			row, err := plantToRow(owner, plant)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, query,
				row.ownerID, row.localKey, row.name, row.careType, row.wateringIntervalDays,
				row.sunHoursTarget, row.sunWeekdays, row.outdoorWeekdays,
				row.lastWateredAt, row.lastSunAt, row.lastOutdoorAt, row.createdAt)
			if err != nil {
				return fmt.Errorf("failed to upsert plant %s: %w", plant.LocalKey, err)
			}
		}
		return nil
	})
}

// SelectPlants lists the owner's plants.
func (p *Postgres) SelectPlants(ctx context.Context, owner string) ([]models.Plant, error) {
	query := `SELECT local_key, name, care_type, watering_interval_days, sun_hours_target,
			sun_weekdays, outdoor_weekdays, last_watered_at, last_sun_at, last_outdoor_at, created_at
		FROM plants WHERE owner_id = $1 ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to select plants: %w", err)
	}
	defer rows.Close()

	var result []models.Plant
	for rows.Next() {
		r := plantRow{ownerID: owner}
		err := rows.Scan(&r.localKey, &r.name, &r.careType, &r.wateringIntervalDays, &r.sunHoursTarget,
			&r.sunWeekdays, &r.outdoorWeekdays, &r.lastWateredAt, &r.lastSunAt, &r.lastOutdoorAt, &r.createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plant row: %w", err)
		}
		plant, err := rowToPlant(r)
		if err != nil {
			return nil, err
		}
		result = append(result, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountPlants is the existence probe: the migration reconciler only needs
// to know whether the count is greater than zero.
func (p *Postgres) CountPlants(ctx context.Context, owner string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM plants WHERE owner_id = $1`, owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count plants: %w", err)
	}
	return count, nil
}

// UpsertNotes replaces or inserts the owner's note rows in one transaction.
func (p *Postgres) UpsertNotes(ctx context.Context, owner string, notes []models.Note) error {
	query := `INSERT INTO notes (owner_id, local_key, note_date, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, local_key) DO UPDATE SET
			note_date = EXCLUDED.note_date,
			body = EXCLUDED.body`

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, n := range notes {
			_, err := tx.ExecContext(ctx, query, owner, n.LocalKey, n.Date, n.Text, n.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to upsert note %s: %w", n.LocalKey, err)
			}
		}
		return nil
	})
}

// SelectNotes lists the owner's notes.
func (p *Postgres) SelectNotes(ctx context.Context, owner string) ([]models.Note, error) {
	query := `SELECT local_key, note_date, body, created_at
		FROM notes WHERE owner_id = $1 ORDER BY note_date, created_at`

	rows, err := p.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	var result []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.LocalKey, &n.Date, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertReminders replaces or inserts the owner's reminder rows in one
// transaction.
func (p *Postgres) UpsertReminders(ctx context.Context, owner string, reminders []models.Reminder) error {
	query := `INSERT INTO reminders (owner_id, local_key, remind_date, body, time_of_day, done, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, local_key) DO UPDATE SET
			remind_date = EXCLUDED.remind_date,
			body = EXCLUDED.body,
			time_of_day = EXCLUDED.time_of_day,
			done = EXCLUDED.done`

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, r := range reminders {
			_, err := tx.ExecContext(ctx, query, owner, r.LocalKey, r.Date, r.Text, r.TimeOfDay, r.Done, r.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to upsert reminder %s: %w", r.LocalKey, err)
			}
		}
		return nil
	})
}

// SelectReminders lists the owner's reminders.
func (p *Postgres) SelectReminders(ctx context.Context, owner string) ([]models.Reminder, error) {
	query := `SELECT local_key, remind_date, body, time_of_day, done, created_at
		FROM reminders WHERE owner_id = $1 ORDER BY remind_date, time_of_day`

	rows, err := p.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to select reminders: %w", err)
	}
	defer rows.Close()

	var result []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.LocalKey, &r.Date, &r.Text, &r.TimeOfDay, &r.Done, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertSettings replaces the owner's settings singleton as a whole.
func (p *Postgres) UpsertSettings(ctx context.Context, owner string, settings models.UserSettings) error {
	query := `INSERT INTO user_settings (owner_id, location_name, latitude, longitude,
			notifications_enabled, notification_time, weather_api_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id) DO UPDATE SET
			location_name = EXCLUDED.location_name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			notifications_enabled = EXCLUDED.notifications_enabled,
			notification_time = EXCLUDED.notification_time,
			weather_api_key = EXCLUDED.weather_api_key,
			updated_at = EXCLUDED.updated_at`

	_, err := p.db.ExecContext(ctx, query, owner, settings.LocationName, settings.Latitude, settings.Longitude,
		settings.NotificationsEnabled, settings.NotificationTime, settings.WeatherAPIKey, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

// SelectSettings returns the owner's settings, or nil if none exist yet.
func (p *Postgres) SelectSettings(ctx context.Context, owner string) (*models.UserSettings, error) {
	query := `SELECT location_name, latitude, longitude, notifications_enabled,
			notification_time, weather_api_key, updated_at
		FROM user_settings WHERE owner_id = $1`

	var s models.UserSettings
	err := p.db.QueryRowContext(ctx, query, owner).Scan(&s.LocationName, &s.Latitude, &s.Longitude,
		&s.NotificationsEnabled, &s.NotificationTime, &s.WeatherAPIKey, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select settings: %w", err)
	}
	return &s, nil
}

// InsertEvents appends the batch in a single multi-row statement.
func (p *Postgres) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO events (device_id, name, properties, occurred_at) VALUES `)

	args := make([]any, 0, len(events)*4)
	for i, e := range events {
		props, err := propertiesToJSON(e.Properties)
		if err != nil {
			return fmt.Errorf("failed to encode event properties: %w", err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4)
		args = append(args, e.DeviceID, e.Name, props, e.OccurredAt)
	}

	if _, err := p.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}
