package models

import "time"

// Event is a fire-and-forget usage event queued for batched delivery.
// Delivery is at-least-once; duplicates on retry are acceptable.
type Event struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	DeviceID   string         `json:"device_id"`
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	out := e
	if e.Properties != nil {
		out.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	return out
}
