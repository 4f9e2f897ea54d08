package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdure-app/verdure/internal/auth"
	"github.com/verdure-app/verdure/internal/common"
	"github.com/verdure-app/verdure/internal/localstore"
	"github.com/verdure-app/verdure/internal/models"
	"github.com/verdure-app/verdure/internal/remote"
)

var _ remote.Adapter = (*fakeAdapter)(nil)

// fakeAdapter is an in-memory remote backend keyed the same way the real
// one is: (owner, local_key) per collection.
type fakeAdapter struct {
	mu           sync.Mutex
	plants       map[string]map[string]models.Plant
	notes        map[string]map[string]models.Note
	reminders    map[string]map[string]models.Reminder
	settings     map[string]models.UserSettings
	events       []models.Event
	plantUpserts int
	failWith     error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		plants:    make(map[string]map[string]models.Plant),
		notes:     make(map[string]map[string]models.Note),
		reminders: make(map[string]map[string]models.Reminder),
		settings:  make(map[string]models.UserSettings),
	}
}

func (f *fakeAdapter) UpsertPlants(ctx context.Context, owner string, plants []models.Plant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plantUpserts++
	if f.failWith != nil {
		return f.failWith
	}
	if f.plants[owner] == nil {
		f.plants[owner] = make(map[string]models.Plant)
	}
	for _, p := range plants {
		f.plants[owner][p.LocalKey] = p
	}
	return nil
}

func (f *fakeAdapter) UpsertNotes(ctx context.Context, owner string, notes []models.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if f.notes[owner] == nil {
		f.notes[owner] = make(map[string]models.Note)
	}
	for _, n := range notes {
		f.notes[owner][n.LocalKey] = n
	}
	return nil
}

func (f *fakeAdapter) UpsertReminders(ctx context.Context, owner string, reminders []models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if f.reminders[owner] == nil {
		f.reminders[owner] = make(map[string]models.Reminder)
	}
	for _, r := range reminders {
		f.reminders[owner][r.LocalKey] = r
	}
	return nil
}

func (f *fakeAdapter) UpsertSettings(ctx context.Context, owner string, settings models.UserSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.settings[owner] = settings
	return nil
}

func (f *fakeAdapter) SelectPlants(ctx context.Context, owner string) ([]models.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []models.Plant
	for _, p := range f.plants[owner] {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeAdapter) SelectNotes(ctx context.Context, owner string) ([]models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []models.Note
	for _, n := range f.notes[owner] {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeAdapter) SelectReminders(ctx context.Context, owner string) ([]models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []models.Reminder
	for _, r := range f.reminders[owner] {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAdapter) SelectSettings(ctx context.Context, owner string) (*models.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	s, ok := f.settings[owner]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeAdapter) CountPlants(ctx context.Context, owner string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	return len(f.plants[owner]), nil
}

func (f *fakeAdapter) InsertEvents(ctx context.Context, events []models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) plantCount(owner string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plants[owner])
}

func (f *fakeAdapter) upsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plantUpserts
}

var testSecret = []byte("test-secret")

func newTestEngine(t *testing.T, adapter remote.Adapter, opts Options) (*Engine, *localstore.Store, *auth.Session) {
	t.Helper()
	store, err := localstore.Open(localstore.NewFileBlob(filepath.Join(t.TempDir(), "blob.json")))
	require.NoError(t, err)
	session := auth.NewSession(testSecret)
	eng := New(adapter, store, session, nil, opts)
	return eng, store, session
}

func signIn(t *testing.T, session *auth.Session, owner string) {
	t.Helper()
	token, err := auth.GenerateToken(owner, testSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, session.SignIn(token))
}

func TestSyncUp_NotAuthenticatedIsSilentNoop(t *testing.T) {
	fake := newFakeAdapter()
	eng, store, _ := newTestEngine(t, fake, Options{})
	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))

	require.NoError(t, eng.SyncUp(context.Background()))

	assert.Equal(t, 0, fake.upsertCalls())
	assert.Equal(t, StatusIdle, eng.State().Status)
}

func TestSyncUp_NotConfiguredIsSilentNoop(t *testing.T) {
	eng, _, session := newTestEngine(t, nil, Options{})
	signIn(t, session, "owner-1")

	// nil adapter: permanent no-op, no error, no error status.
	require.NoError(t, eng.SyncUp(context.Background()))
	assert.Equal(t, StatusIdle, eng.State().Status)
}

func TestSyncUp_UploadsSnapshotAndRecordsTimestamp(t *testing.T) {
	fake := newFakeAdapter()
	eng, store, session := newTestEngine(t, fake, Options{})
	signIn(t, session, "owner-1")

	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))
	require.NoError(t, store.AddNote(*models.NewNote("2026-08-01", "repotted")))
	require.NoError(t, store.SetSettings(models.UserSettings{LocationName: "Lisbon"}))

	require.NoError(t, eng.SyncUp(context.Background()))

	assert.Equal(t, 1, fake.plantCount("owner-1"))
	assert.Len(t, fake.notes["owner-1"], 1)
	assert.Equal(t, "Lisbon", fake.settings["owner-1"].LocationName)
	assert.NotNil(t, store.LastSyncedAt())
}

func TestSyncUp_IsIdempotent(t *testing.T) {
	fake := newFakeAdapter()
	eng, store, session := newTestEngine(t, fake, Options{})
	signIn(t, session, "owner-1")

	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))
	require.NoError(t, store.AddPlant(*models.NewPlant("Ficus", "indoor", 5, 2)))

	require.NoError(t, eng.SyncUp(context.Background()))
	first := make(map[string]models.Plant, len(fake.plants["owner-1"]))
	for k, v := range fake.plants["owner-1"] {
		first[k] = v
	}

	// Same snapshot again: same row set, same content.
	require.NoError(t, eng.SyncUp(context.Background()))
	assert.Equal(t, first, fake.plants["owner-1"])
}

func TestSyncUp_ErrorBecomesStatusNotFault(t *testing.T) {
	fake := newFakeAdapter()
	fake.failWith = errors.New("connection refused")
	eng, store, session := newTestEngine(t, fake, Options{})
	signIn(t, session, "owner-1")
	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))

	err := eng.SyncUp(context.Background())
	require.Error(t, err)

	st := eng.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.Message, "upload failed")
	assert.Nil(t, store.LastSyncedAt())

	eng.ClearError()
	assert.Equal(t, StatusIdle, eng.State().Status)
}

func TestSyncDown_ReturnsPayloadWithoutCommitting(t *testing.T) {
	fake := newFakeAdapter()
	fake.plants["owner-1"] = map[string]models.Plant{
		"lk-1": {LocalKey: "lk-1", Name: "Cloud plant", CreatedAt: time.Now().UTC()},
	}
	eng, store, session := newTestEngine(t, fake, Options{})
	signIn(t, session, "owner-1")

	snap, err := eng.SyncDown(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Plants, 1)
	assert.Equal(t, "Cloud plant", snap.Plants[0].Name)

	// The local store is untouched until the caller commits.
	assert.Equal(t, 0, store.PlantCount())

	require.NoError(t, store.ReplaceSynced(snap))
	assert.Equal(t, 1, store.PlantCount())
}

func TestCheckRemoteHasData(t *testing.T) {
	fake := newFakeAdapter()
	eng, _, session := newTestEngine(t, fake, Options{})

	_, err := eng.CheckRemoteHasData(context.Background())
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)

	signIn(t, session, "owner-1")

	has, err := eng.CheckRemoteHasData(context.Background())
	require.NoError(t, err)
	assert.False(t, has)

	fake.plants["owner-1"] = map[string]models.Plant{"lk-1": {LocalKey: "lk-1"}}
	has, err = eng.CheckRemoteHasData(context.Background())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTriggerDebounced_CoalescesRapidEdits(t *testing.T) {
	fake := newFakeAdapter()
	eng, store, session := newTestEngine(t, fake, Options{DebounceWindow: 50 * time.Millisecond})
	signIn(t, session, "owner-1")
	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))

	for i := 0; i < 5; i++ {
		eng.TriggerDebounced()
		time.Sleep(5 * time.Millisecond)
	}

	// Inside the window nothing has fired yet.
	assert.Equal(t, 0, fake.upsertCalls())

	require.Eventually(t, func() bool { return fake.upsertCalls() == 1 },
		time.Second, 10*time.Millisecond)

	// And exactly once: no stacked timers.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, fake.upsertCalls())
}

func TestTriggerDebounced_GateRecheckedAtFireTime(t *testing.T) {
	fake := newFakeAdapter()
	eng, store, session := newTestEngine(t, fake, Options{DebounceWindow: 40 * time.Millisecond})
	signIn(t, session, "owner-1")
	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))

	var mu sync.Mutex
	open := true
	eng.SetGate(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return open
	})

	// Open at trigger time, closed before the timer fires: the scheduled
	// upload must not run.
	eng.TriggerDebounced()
	mu.Lock()
	open = false
	mu.Unlock()

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, fake.upsertCalls())
}

func TestTriggerDebounced_GateSuppresses(t *testing.T) {
	fake := newFakeAdapter()
	eng, _, session := newTestEngine(t, fake, Options{DebounceWindow: 20 * time.Millisecond})
	signIn(t, session, "owner-1")
	eng.SetGate(func() bool { return false })

	eng.TriggerDebounced()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, fake.upsertCalls())
}

func TestOnBackground_BypassesDebounce(t *testing.T) {
	fake := newFakeAdapter()
	eng, store, session := newTestEngine(t, fake, Options{DebounceWindow: time.Hour})
	signIn(t, session, "owner-1")
	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))

	eng.TriggerDebounced() // would fire in an hour
	eng.OnBackground(context.Background())

	assert.Equal(t, 1, fake.upsertCalls())
	assert.Equal(t, 1, fake.plantCount("owner-1"))

	// The pending debounced upload was cancelled, not left behind.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fake.upsertCalls())
}

func TestOnForeground_PullsAndCommitsWhenStale(t *testing.T) {
	fake := newFakeAdapter()
	fake.plants["owner-1"] = map[string]models.Plant{
		"lk-1": {LocalKey: "lk-1", Name: "Cloud plant", CreatedAt: time.Now().UTC()},
	}
	eng, store, session := newTestEngine(t, fake, Options{StaleThreshold: time.Minute})
	signIn(t, session, "owner-1")

	eng.OnForeground(context.Background(), 30*time.Second)
	assert.Equal(t, 0, store.PlantCount())

	eng.OnForeground(context.Background(), 2*time.Minute)
	assert.Equal(t, 1, store.PlantCount())
}

func TestSuccessStatusDecaysToIdle(t *testing.T) {
	fake := newFakeAdapter()
	eng, _, session := newTestEngine(t, fake, Options{SuccessDisplay: 20 * time.Millisecond})
	signIn(t, session, "owner-1")

	require.NoError(t, eng.SyncUp(context.Background()))
	assert.Equal(t, StatusSuccess, eng.State().Status)

	require.Eventually(t, func() bool { return eng.State().Status == StatusIdle },
		time.Second, 5*time.Millisecond)
}

func TestSetOffline_DisplayOnly(t *testing.T) {
	fake := newFakeAdapter()
	eng, store, session := newTestEngine(t, fake, Options{})
	signIn(t, session, "owner-1")
	require.NoError(t, store.AddPlant(*models.NewPlant("Monstera", "tropical", 7, 4)))

	eng.SetOffline(true)
	assert.Equal(t, StatusOffline, eng.State().Status)

	// Calls are still attempted while offline.
	require.NoError(t, eng.SyncUp(context.Background()))
	assert.Equal(t, 1, fake.plantCount("owner-1"))

	eng.SetOffline(false)
}

func TestStatusChangeCallback(t *testing.T) {
	fake := newFakeAdapter()
	var mu sync.Mutex
	var seen []Status

	store, err := localstore.Open(localstore.NewFileBlob(filepath.Join(t.TempDir(), "blob.json")))
	require.NoError(t, err)
	session := auth.NewSession(testSecret)
	eng := New(fake, store, session, nil, Options{
		SuccessDisplay: time.Hour,
		OnStatusChange: func(st State) {
			mu.Lock()
			seen = append(seen, st.Status)
			mu.Unlock()
		},
	})
	signIn(t, session, "owner-1")

	require.NoError(t, eng.SyncUp(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusSyncing, StatusSuccess}, seen)
}
