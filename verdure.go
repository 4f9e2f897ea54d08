// Package verdure is the local-first synchronization subsystem of the
// Verdure plant-care tracker. The host UI constructs Services once at
// process start, drives mutations through Services.Store, and reports app
// lifecycle transitions through Services.Lifecycle; everything else —
// debounced uploads, staleness pulls, sign-in reconciliation, telemetry
// flushing — happens behind that surface.
//
// Minimal host wiring:
//
//	cfg, err := config.LoadConfig("")
//	svc, err := verdure.New(ctx, cfg, logger)
//	defer svc.Close()
//	svc.Telemetry.Start(ctx)
//
//	// on user sign-in:
//	if err := svc.Session.SignIn(accessToken); err != nil { ... }
//	outcome, err := svc.Reconciler.Run(ctx)
//	if outcome == migration.OutcomePrompt {
//	    // ask the user, then:
//	    svc.Reconciler.Resolve(ctx, migration.DecisionUpload)
//	}
//
//	// after every local edit:
//	svc.Store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4))
//	svc.Engine.TriggerDebounced()
package verdure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verdure-app/verdure/internal/auth"
	"github.com/verdure-app/verdure/internal/config"
	"github.com/verdure-app/verdure/internal/engine"
	"github.com/verdure-app/verdure/internal/lifecycle"
	"github.com/verdure-app/verdure/internal/localstore"
	"github.com/verdure-app/verdure/internal/logging"
	"github.com/verdure-app/verdure/internal/migration"
	"github.com/verdure-app/verdure/internal/remote"
	"github.com/verdure-app/verdure/internal/telemetry"
)

// Services is the explicitly constructed, dependency-injected object graph
// of the sync subsystem. There is no ambient global state: the host owns
// the instance and its lifecycle.
type Services struct {
	Store      *localstore.Store
	Session    *auth.Session
	Engine     *engine.Engine
	Reconciler *migration.Reconciler
	Telemetry  *telemetry.Queue
	Lifecycle  *lifecycle.Notifier

	adapter remote.Adapter
}

// New builds the object graph from cfg. With an empty RemoteDSN the
// subsystem runs in local-only mode: every sync operation is a no-op and
// telemetry queues without delivering.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Services, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	store, err := localstore.Open(localstore.NewFileBlob(cfg.BlobPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	var adapter remote.Adapter
	var sink telemetry.Sink
	if cfg.RemoteDSN != "" {
		pg, err := remote.Open(ctx, cfg.RemoteDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open remote backend: %w", err)
		}
		adapter = pg
		sink = pg
	}

	session := auth.NewSession([]byte(cfg.TokenSecret))

	eng := engine.New(adapter, store, session, log, engine.Options{
		DebounceWindow: cfg.DebounceWindow,
		StaleThreshold: cfg.StaleThreshold,
		SuccessDisplay: cfg.SuccessDisplay,
	})

	rec := migration.New(eng, store, session, log)
	eng.SetGate(func() bool {
		if _, ok := session.Owner(); !ok {
			return true // nothing to protect, triggers no-op anyway
		}
		return rec.Checked()
	})

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	queue := telemetry.New(sink, store, log, deviceID, telemetry.Options{
		FlushInterval: cfg.TelemetryFlushInterval,
		BatchSize:     cfg.TelemetryBatchSize,
	})

	notifier := lifecycle.NewNotifier()
	notifier.OnBackground(func(ctx context.Context) {
		eng.OnBackground(ctx)
		_ = queue.Flush(ctx)
	})
	notifier.OnForeground(func(ctx context.Context, elapsed time.Duration) {
		eng.OnForeground(ctx, elapsed)
	})

	return &Services{
		Store:      store,
		Session:    session,
		Engine:     eng,
		Reconciler: rec,
		Telemetry:  queue,
		Lifecycle:  notifier,
		adapter:    adapter,
	}, nil
}

// Close tears the subsystem down: stops the telemetry loop, persists its
// backlog and closes the backend connection.
func (s *Services) Close() error {
	s.Telemetry.Close()
	if s.adapter != nil {
		return s.adapter.Close()
	}
	return nil
}
