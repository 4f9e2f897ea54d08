// Package migration resolves the ambiguity of "device has local data, the
// account may or may not have cloud data" exactly once per sign-in. Cloud
// data, once it exists, is authoritative: it is pulled and committed
// without merging. Only when the cloud is empty and the device is not does
// the user get a say, because that is the one case where two independently
// populated replicas must be reduced to one without a principled merge.
package migration

import (
	"context"
	"errors"
	"sync"

	"github.com/verdure-app/verdure/internal/auth"
	"github.com/verdure-app/verdure/internal/common"
	"github.com/verdure-app/verdure/internal/engine"
	"github.com/verdure-app/verdure/internal/localstore"
	"github.com/verdure-app/verdure/internal/logging"
)

// Outcome classifies what Run decided.
type Outcome int

const (
	// OutcomeSkipped: not signed in, already reconciled this session, or
	// no backend configured.
	OutcomeSkipped Outcome = iota
	// OutcomePulled: the cloud had data; it was downloaded and committed.
	OutcomePulled
	// OutcomePrompt: the cloud is empty but the device has plants; the
	// host must ask the user and call Resolve.
	OutcomePrompt
	// OutcomeNothing: neither side has data.
	OutcomeNothing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomePulled:
		return "pulled"
	case OutcomePrompt:
		return "prompt"
	case OutcomeNothing:
		return "nothing"
	default:
		return "unknown"
	}
}

// Decision is the user's answer to the migration prompt.
type Decision int

const (
	// DecisionUpload pushes the device's data to the empty cloud account.
	DecisionUpload Decision = iota
	// DecisionStartFresh discards the local plant collection. Notes,
	// reminders and settings are left untouched.
	DecisionStartFresh
	// DecisionCancel defers: nothing is uploaded or discarded.
	DecisionCancel
)

// Reconciler runs the one-shot decision flow. The checked guard is set once
// a branch completes (for the prompt branch: once Resolve is called, with
// any decision including cancel) and resets on sign-out.
type Reconciler struct {
	engine  *engine.Engine
	store   *localstore.Store
	session *auth.Session
	log     logging.Logger

	mu      sync.Mutex
	checked bool
	running bool
}

// New creates a reconciler and subscribes it to sign-out for guard reset.
func New(eng *engine.Engine, store *localstore.Store, session *auth.Session, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &Reconciler{engine: eng, store: store, session: session, log: log}
	session.OnSignOut(r.reset)
	return r
}

// Checked reports whether reconciliation has completed for this sign-in.
// Wired into the sync engine's trigger gate so no upload can race ahead of
// the reconciliation decision.
func (r *Reconciler) Checked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checked
}

func (r *Reconciler) reset() {
	r.mu.Lock()
	r.checked = false
	r.mu.Unlock()
}

// Run evaluates the three-way branch. It is safe to call repeatedly and
// concurrently: a call that overlaps an in-flight one returns
// OutcomeSkipped, and every call after the first definite outcome returns
// OutcomeSkipped until the next sign-in.
func (r *Reconciler) Run(ctx context.Context) (Outcome, error) {
	if _, ok := r.session.Owner(); !ok {
		return OutcomeSkipped, nil
	}

	r.mu.Lock()
	if r.checked || r.running {
		r.mu.Unlock()
		return OutcomeSkipped, nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	hasRemote, err := r.engine.CheckRemoteHasData(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotConfigured) {
			r.setChecked()
			return OutcomeSkipped, nil
		}
		// A failed probe degrades to "no remote data": prompting the user
		// is the safer of the two wrong guesses, silently overwriting an
		// account that does have data is not.
		r.log.Warn(ctx, "remote existence probe failed, assuming no cloud data", "error", err)
		hasRemote = false
	}

	if hasRemote {
		snap, err := r.engine.SyncDown(ctx)
		if err != nil || snap == nil {
			r.log.Warn(ctx, "migration pull failed, falling through to prompt", "error", err)
		} else {
			if err := r.store.ReplaceSynced(snap); err != nil {
				return OutcomeSkipped, err
			}
			r.setChecked()
			r.log.Info(ctx, "migration: committed cloud snapshot", "plants", len(snap.Plants))
			return OutcomePulled, nil
		}
	}

	if r.store.PlantCount() > 0 {
		// The guard is NOT set here: it is set by Resolve, whichever
		// decision the user makes.
		r.log.Info(ctx, "migration: local data with empty cloud account, prompting")
		return OutcomePrompt, nil
	}

	r.setChecked()
	return OutcomeNothing, nil
}

// Resolve applies the user's decision to the prompt branch. The guard is
// set regardless of the decision, so cancelling does not re-prompt within
// the same session.
func (r *Reconciler) Resolve(ctx context.Context, d Decision) error {
	r.setChecked()

	switch d {
	case DecisionUpload:
		return r.engine.SyncUp(ctx)
	case DecisionStartFresh:
		return r.store.ClearPlants()
	case DecisionCancel:
		return nil
	default:
		return errors.New("unknown migration decision")
	}
}

func (r *Reconciler) setChecked() {
	r.mu.Lock()
	r.checked = true
	r.mu.Unlock()
}
