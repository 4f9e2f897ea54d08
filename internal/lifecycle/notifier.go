// Package lifecycle fans app foreground/background transitions out to the
// components that react to them: the sync engine (forced upload on
// background, staleness pull on foreground) and the telemetry queue
// (flush on background).
package lifecycle

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Notifier receives transition events from the host UI and invokes
// subscribers in registration order.
type Notifier struct {
	mu             sync.Mutex
	backgroundSubs []func(ctx context.Context)
	foregroundSubs []func(ctx context.Context, elapsed time.Duration)
	backgroundedAt time.Time

	// now is swappable in tests.
	now func() time.Time
}

func NewNotifier() *Notifier {
	return &Notifier{now: time.Now}
}

// OnBackground registers a callback for the transition to background.
func (n *Notifier) OnBackground(fn func(ctx context.Context)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.backgroundSubs = append(n.backgroundSubs, fn)
}

// OnForeground registers a callback for the transition to foreground.
// elapsed is how long the app spent in the background, zero on first launch.
func (n *Notifier) OnForeground(fn func(ctx context.Context, elapsed time.Duration)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.foregroundSubs = append(n.foregroundSubs, fn)
}

// EnterBackground records the transition time and notifies subscribers.
func (n *Notifier) EnterBackground(ctx context.Context) {
	n.mu.Lock()
	n.backgroundedAt = n.now()
	subs := slices.Clone(n.backgroundSubs)
	n.mu.Unlock()

	for _, fn := range subs {
		fn(ctx)
	}
}

// EnterForeground notifies subscribers with the elapsed background time.
func (n *Notifier) EnterForeground(ctx context.Context) {
	n.mu.Lock()
	var elapsed time.Duration
	if !n.backgroundedAt.IsZero() {
		elapsed = n.now().Sub(n.backgroundedAt)
		n.backgroundedAt = time.Time{}
	}
	subs := slices.Clone(n.foregroundSubs)
	n.mu.Unlock()

	for _, fn := range subs {
		fn(ctx, elapsed)
	}
}
