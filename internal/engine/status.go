package engine

import "time"

// Status is the sync engine's display state.
type Status int

const (
	// StatusIdle means no sync is running or pending display.
	StatusIdle Status = iota
	// StatusSyncing means an upload or download is in flight.
	StatusSyncing
	// StatusSuccess is shown briefly after a successful sync, then decays
	// back to StatusIdle.
	StatusSuccess
	// StatusError is shown after a failed sync until cleared.
	StatusError
	// StatusOffline is reported instead of StatusIdle when connectivity is
	// known to be absent. Calls are still attempted and allowed to fail.
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSyncing:
		return "syncing"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// State is the status surfaced to the UI.
type State struct {
	Status       Status
	Message      string
	LastSyncedAt *time.Time
}
