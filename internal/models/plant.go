// Package models defines the entity types synchronized between the local
// store and the remote backend. Every entity carries a device-generated
// local key that stays stable for the lifetime of the record and forms,
// together with the owner, the remote upsert conflict target.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DateKey is a calendar date in "2006-01-02" form, used to group notes and
// reminders by day.
type DateKey = string

// DateKeyLayout is the time layout DateKey values are formatted with.
const DateKeyLayout = "2006-01-02"

// Plant is a tracked plant with its care schedule and the dates of the most
// recent care actions. Weekday sets use time.Weekday (0 = Sunday).
type Plant struct {
	LocalKey             string         `json:"local_key"`
	Name                 string         `json:"name"`
	CareType             string         `json:"care_type"`
	WateringIntervalDays int            `json:"watering_interval_days"`
	SunHoursTarget       float64        `json:"sun_hours_target"`
	SunWeekdays          []time.Weekday `json:"sun_weekdays,omitempty"`
	OutdoorWeekdays      []time.Weekday `json:"outdoor_weekdays,omitempty"`
	LastWateredAt        *time.Time     `json:"last_watered_at,omitempty"`
	LastSunAt            *time.Time     `json:"last_sun_at,omitempty"`
	LastOutdoorAt        *time.Time     `json:"last_outdoor_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// NewPlant creates a plant with a fresh local key.
func NewPlant(name, careType string, wateringIntervalDays int, sunHoursTarget float64) *Plant {
	return &Plant{
		LocalKey:             uuid.NewString(),
		Name:                 name,
		CareType:             careType,
		WateringIntervalDays: wateringIntervalDays,
		SunHoursTarget:       sunHoursTarget,
		CreatedAt:            time.Now().UTC(),
	}
}

// Clone returns a deep copy.
func (p *Plant) Clone() *Plant {
	out := *p
	out.SunWeekdays = append([]time.Weekday(nil), p.SunWeekdays...)
	out.OutdoorWeekdays = append([]time.Weekday(nil), p.OutdoorWeekdays...)
	out.LastWateredAt = cloneTime(p.LastWateredAt)
	out.LastSunAt = cloneTime(p.LastSunAt)
	out.LastOutdoorAt = cloneTime(p.LastOutdoorAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
