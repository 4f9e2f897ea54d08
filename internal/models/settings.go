package models

import "time"

// UserSettings is the per-account singleton. It is always upserted as a
// whole on the wire; there is no field-level patching.
type UserSettings struct {
	LocationName         string    `json:"location_name"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	NotificationTime     string    `json:"notification_time"`
	WeatherAPIKey        string    `json:"weather_api_key"`
	UpdatedAt            time.Time `json:"updated_at"`
}
