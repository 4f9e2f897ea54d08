package remote

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/verdure-app/verdure/internal/models"
)

// Converters between local shapes and wire rows. Conversion is total and
// lossless for the declared fields: NULL columns decode to the zero/nil
// value, weekday sets and event properties travel as JSONB.

type plantRow struct {
	ownerID              string
	localKey             string
	name                 string
	careType             string
	wateringIntervalDays int64
	sunHoursTarget       float64
	sunWeekdays          []byte
	outdoorWeekdays      []byte
	lastWateredAt        sql.NullTime
	lastSunAt            sql.NullTime
	lastOutdoorAt        sql.NullTime
	createdAt            time.Time
}

func plantToRow(owner string, p models.Plant) (plantRow, error) {
	sun, err := weekdaysToJSON(p.SunWeekdays)
	if err != nil {
		return plantRow{}, fmt.Errorf("failed to encode sun weekdays: %w", err)
	}
	outdoor, err := weekdaysToJSON(p.OutdoorWeekdays)
	if err != nil {
		return plantRow{}, fmt.Errorf("failed to encode outdoor weekdays: %w", err)
	}
	return plantRow{
		ownerID:              owner,
		localKey:             p.LocalKey,
		name:                 p.Name,
		careType:             p.CareType,
		wateringIntervalDays: int64(p.WateringIntervalDays),
		sunHoursTarget:       p.SunHoursTarget,
		sunWeekdays:          sun,
		outdoorWeekdays:      outdoor,
		lastWateredAt:        nullTime(p.LastWateredAt),
		lastSunAt:            nullTime(p.LastSunAt),
		lastOutdoorAt:        nullTime(p.LastOutdoorAt),
		createdAt:            p.CreatedAt,
	}, nil
}

func rowToPlant(r plantRow) (models.Plant, error) {
	sun, err := jsonToWeekdays(r.sunWeekdays)
	if err != nil {
		return models.Plant{}, fmt.Errorf("failed to decode sun weekdays: %w", err)
	}
	outdoor, err := jsonToWeekdays(r.outdoorWeekdays)
	if err != nil {
		return models.Plant{}, fmt.Errorf("failed to decode outdoor weekdays: %w", err)
	}
	return models.Plant{
		LocalKey:             r.localKey,
		Name:                 r.name,
		CareType:             r.careType,
		WateringIntervalDays: int(r.wateringIntervalDays),
		SunHoursTarget:       r.sunHoursTarget,
		SunWeekdays:          sun,
		OutdoorWeekdays:      outdoor,
		LastWateredAt:        timePtr(r.lastWateredAt),
		LastSunAt:            timePtr(r.lastSunAt),
		LastOutdoorAt:        timePtr(r.lastOutdoorAt),
		CreatedAt:            r.createdAt,
	}, nil
}

func weekdaysToJSON(days []time.Weekday) ([]byte, error) {
	if len(days) == 0 {
		return nil, nil
	}
	return json.Marshal(days)
}

func jsonToWeekdays(data []byte) ([]time.Weekday, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var days []time.Weekday
	if err := json.Unmarshal(data, &days); err != nil {
		return nil, err
	}
	return days, nil
}

func propertiesToJSON(props map[string]any) ([]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	return json.Marshal(props)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
