// Package engine implements the sync engine: it owns the idle/syncing/
// success/error state machine for the current account and decides when to
// call the remote store adapter.
//
// Concurrency contract: triggers (user edits, the debounce timer, app
// lifecycle transitions) may overlap. The engine serializes its state
// behind a mutex but does not cancel an in-flight call when a new trigger
// arrives; because upserts are idempotent on (owner, local_key) and selects
// re-read current state, an out-of-order completion can only momentarily
// reorder the status display, never corrupt data.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/verdure-app/verdure/internal/auth"
	"github.com/verdure-app/verdure/internal/common"
	"github.com/verdure-app/verdure/internal/localstore"
	"github.com/verdure-app/verdure/internal/logging"
	"github.com/verdure-app/verdure/internal/models"
	"github.com/verdure-app/verdure/internal/remote"
)

const (
	// DefaultDebounceWindow is the quiet period after the last trigger
	// before a pending upload fires.
	DefaultDebounceWindow = 5 * time.Second
	// DefaultStaleThreshold is the background time after which a
	// foreground transition forces a download.
	DefaultStaleThreshold = 5 * time.Minute
	// DefaultSuccessDisplay is how long the success state is shown before
	// decaying to idle.
	DefaultSuccessDisplay = 2 * time.Second
)

// Options tunes the engine. Zero durations fall back to the defaults.
type Options struct {
	DebounceWindow time.Duration
	StaleThreshold time.Duration
	SuccessDisplay time.Duration

	// OnStatusChange, if set, is invoked after every state transition.
	OnStatusChange func(State)
}

// Engine orchestrates sync up, sync down, the existence probe and the
// debounced trigger for one running app instance.
type Engine struct {
	adapter remote.Adapter
	store   *localstore.Store
	session *auth.Session
	log     logging.Logger

	debounceWindow time.Duration
	staleThreshold time.Duration
	successDisplay time.Duration
	onChange       func(State)

	mu       sync.Mutex
	status   Status
	message  string
	offline  bool
	debounce *time.Timer
	decay    *time.Timer
	gate     func() bool
}

// New creates an engine. adapter may be nil, in which case every sync
// operation is a permanent no-op (the not-configured case).
func New(adapter remote.Adapter, store *localstore.Store, session *auth.Session, log logging.Logger, opts Options) *Engine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	e := &Engine{
		adapter:        adapter,
		store:          store,
		session:        session,
		log:            log,
		debounceWindow: opts.DebounceWindow,
		staleThreshold: opts.StaleThreshold,
		successDisplay: opts.SuccessDisplay,
		onChange:       opts.OnStatusChange,
	}
	if e.debounceWindow <= 0 {
		e.debounceWindow = DefaultDebounceWindow
	}
	if e.staleThreshold <= 0 {
		e.staleThreshold = DefaultStaleThreshold
	}
	if e.successDisplay <= 0 {
		e.successDisplay = DefaultSuccessDisplay
	}
	return e
}

// SetGate installs a predicate consulted before any trigger-driven sync.
// The host wires the migration reconciler's one-shot guard here so a
// debounced upload cannot race ahead of the reconciliation decision.
// Direct SyncUp/SyncDown calls are not gated; the reconciler itself uses
// them.
func (e *Engine) SetGate(gate func() bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = gate
}

// State returns the current display state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	st := State{Status: e.status, Message: e.message, LastSyncedAt: e.store.LastSyncedAt()}
	if e.offline && e.status == StatusIdle {
		st.Status = StatusOffline
	}
	return st
}

// SetOffline records the connectivity hint. It only affects the display
// state; sync calls are still attempted while offline.
func (e *Engine) SetOffline(offline bool) {
	e.mu.Lock()
	e.offline = offline
	st := e.stateLocked()
	e.mu.Unlock()
	e.notify(st)
}

// ClearError dismisses a surfaced sync failure.
func (e *Engine) ClearError() {
	e.mu.Lock()
	if e.status != StatusError {
		e.mu.Unlock()
		return
	}
	e.status = StatusIdle
	e.message = ""
	st := e.stateLocked()
	e.mu.Unlock()
	e.notify(st)
}

// SyncUp serializes the current snapshot and upserts each collection to the
// remote backend. With no authenticated owner or no configured backend it
// is a silent no-op. On success the last-synced timestamp is recorded in
// the local store.
func (e *Engine) SyncUp(ctx context.Context) error {
	owner, ok := e.session.Owner()
	if !ok {
		e.log.Debug(ctx, "sync up skipped: not authenticated")
		return nil
	}
	if e.adapter == nil {
		e.log.Debug(ctx, "sync up skipped: remote backend not configured")
		return nil
	}

	e.setStatus(StatusSyncing, "")

	snap := e.store.Snapshot()
	if err := e.upload(ctx, owner, snap); err != nil {
		e.log.Error(ctx, "sync up failed", "owner", owner, "error", err)
		e.setStatus(StatusError, fmt.Sprintf("upload failed: %v", err))
		return err
	}

	if err := e.store.SetLastSyncedAt(time.Now().UTC()); err != nil {
		e.log.Warn(ctx, "failed to persist last-synced timestamp", "error", err)
	}

	e.log.Info(ctx, "sync up complete", "owner", owner, "plants", len(snap.Plants))
	e.setSuccess()
	return nil
}

func (e *Engine) upload(ctx context.Context, owner string, snap *models.Snapshot) error {
	if err := e.adapter.UpsertPlants(ctx, owner, snap.Plants); err != nil {
		return fmt.Errorf("plants: %w", err)
	}
	if err := e.adapter.UpsertNotes(ctx, owner, flattenNotes(snap.Notes)); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	if err := e.adapter.UpsertReminders(ctx, owner, flattenReminders(snap.Reminders)); err != nil {
		return fmt.Errorf("reminders: %w", err)
	}
	if snap.Settings != nil {
		if err := e.adapter.UpsertSettings(ctx, owner, *snap.Settings); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}
	return nil
}

// SyncDown fetches all collections for the owner and returns them decoded
// into the local shapes. It never writes the local store itself: the caller
// commits the payload (via localstore.Store.ReplaceSynced), so a user
// decision can be interposed between "data is available" and "data is
// applied". A nil snapshot with nil error means the call was skipped.
func (e *Engine) SyncDown(ctx context.Context) (*models.Snapshot, error) {
	owner, ok := e.session.Owner()
	if !ok {
		e.log.Debug(ctx, "sync down skipped: not authenticated")
		return nil, nil
	}
	if e.adapter == nil {
		e.log.Debug(ctx, "sync down skipped: remote backend not configured")
		return nil, nil
	}

	e.setStatus(StatusSyncing, "")

	snap, err := e.download(ctx, owner)
	if err != nil {
		e.log.Error(ctx, "sync down failed", "owner", owner, "error", err)
		e.setStatus(StatusError, fmt.Sprintf("download failed: %v", err))
		return nil, err
	}

	e.log.Info(ctx, "sync down complete", "owner", owner, "plants", len(snap.Plants))
	e.setSuccess()
	return snap, nil
}

func (e *Engine) download(ctx context.Context, owner string) (*models.Snapshot, error) {
	snap := models.NewSnapshot()

	plants, err := e.adapter.SelectPlants(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("plants: %w", err)
	}
	snap.Plants = plants

	notes, err := e.adapter.SelectNotes(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("notes: %w", err)
	}
	for _, n := range notes {
		snap.Notes[n.Date] = append(snap.Notes[n.Date], n)
	}

	reminders, err := e.adapter.SelectReminders(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("reminders: %w", err)
	}
	for _, r := range reminders {
		snap.Reminders[r.Date] = append(snap.Reminders[r.Date], r)
	}

	settings, err := e.adapter.SelectSettings(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	snap.Settings = settings

	return snap, nil
}

// CheckRemoteHasData probes whether the account already has cloud data.
// Used only by the migration reconciler; does not touch the state machine.
func (e *Engine) CheckRemoteHasData(ctx context.Context) (bool, error) {
	owner, ok := e.session.Owner()
	if !ok {
		return false, common.ErrNotAuthenticated
	}
	if e.adapter == nil {
		return false, common.ErrNotConfigured
	}
	count, err := e.adapter.CountPlants(ctx, owner)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TriggerDebounced (re)schedules an upload after the debounce window.
// Rapid successive edits coalesce into a single upload scheduled after the
// last one. A trigger while a sync is in flight does not cancel it; it only
// schedules a follow-up.
//
// The gate is consulted twice: at trigger time to avoid scheduling at all,
// and again when the timer fires, because the session state may have
// changed in between. An edit triggered just before sign-in must not fire
// an upload ahead of the reconciliation decision.
func (e *Engine) TriggerDebounced() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gate != nil && !e.gate() {
		e.log.Debug(context.Background(), "debounced trigger suppressed: reconciliation pending")
		return
	}

	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.debounceWindow, func() {
		e.mu.Lock()
		suppressed := e.gate != nil && !e.gate()
		e.mu.Unlock()
		if suppressed {
			e.log.Debug(context.Background(), "debounced upload suppressed: reconciliation pending")
			return
		}
		_ = e.SyncUp(context.Background())
	})
}

// OnBackground forces an immediate upload, bypassing the debounce window.
// Durability beats efficiency right before the process may be suspended.
func (e *Engine) OnBackground(ctx context.Context) {
	e.mu.Lock()
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	gated := e.gate != nil && !e.gate()
	e.mu.Unlock()

	if gated {
		return
	}
	_ = e.SyncUp(ctx)
}

// OnForeground forces a download when the app spent longer than the stale
// threshold in the background, and commits it into the local store. This
// bounds staleness without polling while foregrounded.
func (e *Engine) OnForeground(ctx context.Context, elapsed time.Duration) {
	if elapsed < e.staleThreshold {
		return
	}

	e.mu.Lock()
	gated := e.gate != nil && !e.gate()
	e.mu.Unlock()
	if gated {
		return
	}

	snap, err := e.SyncDown(ctx)
	if err != nil || snap == nil {
		return
	}
	if err := e.store.ReplaceSynced(snap); err != nil {
		e.log.Error(ctx, "failed to commit downloaded snapshot", "error", err)
	}
}

func (e *Engine) setStatus(status Status, message string) {
	e.mu.Lock()
	e.status = status
	e.message = message
	st := e.stateLocked()
	e.mu.Unlock()
	e.notify(st)
}

func (e *Engine) setSuccess() {
	e.mu.Lock()
	e.status = StatusSuccess
	e.message = ""
	if e.decay != nil {
		e.decay.Stop()
	}
	e.decay = time.AfterFunc(e.successDisplay, e.decaySuccess)
	st := e.stateLocked()
	e.mu.Unlock()
	e.notify(st)
}

func (e *Engine) decaySuccess() {
	e.mu.Lock()
	if e.status != StatusSuccess {
		e.mu.Unlock()
		return
	}
	e.status = StatusIdle
	st := e.stateLocked()
	e.mu.Unlock()
	e.notify(st)
}

func (e *Engine) notify(st State) {
	if e.onChange != nil {
		e.onChange(st)
	}
}

func flattenNotes(byDate map[models.DateKey][]models.Note) []models.Note {
	var out []models.Note
	for _, notes := range byDate {
		out = append(out, notes...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].LocalKey < out[j].LocalKey
	})
	return out
}

func flattenReminders(byDate map[models.DateKey][]models.Reminder) []models.Reminder {
	var out []models.Reminder
	for _, rs := range byDate {
		out = append(out, rs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].LocalKey < out[j].LocalKey
	})
	return out
}
