// Package telemetry is a best-effort, at-least-once delivery queue for
// fire-and-forget usage events. It must never crash or block the host app:
// recording is an in-memory append, delivery happens in batches on a timer
// and on app background, and a failed batch goes back to the front of the
// queue and is persisted so it survives process death. Duplicate delivery
// on retry is accepted; losing an event is not.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/verdure-app/verdure/internal/localstore"
	"github.com/verdure-app/verdure/internal/logging"
	"github.com/verdure-app/verdure/internal/models"
)

const (
	// DefaultFlushInterval is how often the periodic flush fires.
	DefaultFlushInterval = 30 * time.Second
	// DefaultBatchSize caps how many events one flush attempts to deliver.
	DefaultBatchSize = 50
)

// Sink receives event batches. The remote adapter satisfies this.
type Sink interface {
	InsertEvents(ctx context.Context, events []models.Event) error
}

// Options tunes the queue. Zero values fall back to the defaults.
type Options struct {
	FlushInterval time.Duration
	BatchSize     int
}

// Queue buffers events in memory and flushes them in batches.
type Queue struct {
	sink     Sink
	store    *localstore.Store
	log      logging.Logger
	deviceID string

	flushInterval time.Duration
	batchSize     int

	mu      sync.Mutex
	pending []models.Event
	started bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a queue seeded with the backlog persisted in the local store.
// sink may be nil (backend not configured): events keep queueing and are
// persisted, nothing is ever delivered or dropped.
func New(sink Sink, store *localstore.Store, log logging.Logger, deviceID string, opts Options) *Queue {
	if log == nil {
		log = logging.NewNopLogger()
	}
	q := &Queue{
		sink:          sink,
		store:         store,
		log:           log,
		deviceID:      deviceID,
		flushInterval: opts.FlushInterval,
		batchSize:     opts.BatchSize,
		pending:       store.PendingEvents(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if q.flushInterval <= 0 {
		q.flushInterval = DefaultFlushInterval
	}
	if q.batchSize <= 0 {
		q.batchSize = DefaultBatchSize
	}
	return q
}

// Record appends an event. Non-blocking: no I/O happens on this path.
func (q *Queue) Record(name string, properties map[string]any) {
	e := models.Event{
		Name:       name,
		Properties: properties,
		OccurredAt: time.Now().UTC(),
		DeviceID:   q.deviceID,
	}
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()
}

// Len reports how many events are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start launches the periodic flush loop. Stop it with Close. Calling
// Start more than once is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = q.Flush(ctx)
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Flush attempts to deliver one batch from the front of the queue. On
// failure the batch is returned to the front and the whole queue is
// persisted. Failures are logged, never surfaced to the user.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.pending) == 0 || q.sink == nil {
		q.persistLocked(ctx)
		q.mu.Unlock()
		return nil
	}
	n := q.batchSize
	if n > len(q.pending) {
		n = len(q.pending)
	}
	batch := q.pending[:n:n]
	q.pending = q.pending[n:]
	q.mu.Unlock()

	// Network call happens without the lock so Record never blocks on it.
	err := q.sink.InsertEvents(ctx, batch)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.pending = append(append([]models.Event(nil), batch...), q.pending...)
		q.persistLocked(ctx)
		q.log.Warn(ctx, "telemetry flush failed, batch requeued", "events", len(batch), "error", err)
		return err
	}
	q.persistLocked(ctx)
	q.log.Debug(ctx, "telemetry flush delivered", "events", len(batch))
	return nil
}

// Close stops the flush loop and persists whatever is still queued.
func (q *Queue) Close() {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()

	q.stopOnce.Do(func() {
		close(q.stop)
		if started {
			<-q.done
		}
	})
	q.mu.Lock()
	q.persistLocked(context.Background())
	q.mu.Unlock()
}

func (q *Queue) persistLocked(ctx context.Context) {
	if err := q.store.SetPendingEvents(q.pending); err != nil {
		q.log.Warn(ctx, "failed to persist telemetry backlog", "error", err)
	}
}
