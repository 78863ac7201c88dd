package eventsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventfinder/agent/internal/remote"
	"github.com/eventfinder/agent/internal/storage"
	"github.com/eventfinder/agent/internal/storage/models"
)

var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeRemote is an in-memory RemoteSource.
type fakeRemote struct {
	mu        sync.Mutex
	reachable bool
	events    []models.Event
	nextID    int64

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// listGate, when set, blocks ListEvents until it is closed.
	listGate chan struct{}

	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls []int64
	uploaded    []byte
}

func newFakeRemote(events ...models.Event) *fakeRemote {
	return &fakeRemote{reachable: true, events: events, nextID: 100}
}

func (f *fakeRemote) setReachable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable = v
}

func (f *fakeRemote) IsReachable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reachable
}

func (f *fakeRemote) ListEvents(ctx context.Context) ([]models.Event, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeRemote) CreateEvent(ctx context.Context, event models.Event, imagePath string) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return models.Event{}, f.createErr
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", remote.ErrNetwork, err)
	}
	f.uploaded = data

	f.nextID++
	event.ID = models.Int64(f.nextID)
	event.Image = models.String(fmt.Sprintf("uploads/%d.jpg", f.nextID))
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeRemote) UpdateEvent(ctx context.Context, id int64, event models.Event) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return models.Event{}, f.updateErr
	}
	event.ID = models.Int64(id)
	event.IsFromCache = false
	event.LastSyncTimestamp = 0
	return event, nil
}

func (f *fakeRemote) DeleteEvent(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

func (f *fakeRemote) calls() (list, create, update int, deletes []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.createCalls, f.updateCalls, append([]int64(nil), f.deleteCalls...)
}

// failingStore wraps a real store and fails selected writes.
type failingStore struct {
	*storage.EventRepository
	upsertManyErr error
	deleteErr     error
}

func (s *failingStore) UpsertMany(ctx context.Context, events []models.Event) error {
	if s.upsertManyErr != nil {
		return s.upsertManyErr
	}
	return s.EventRepository.UpsertMany(ctx, events)
}

func (s *failingStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return s.EventRepository.DeleteByID(ctx, id)
}

var errDiskFull = errors.New("disk full")

func setupStore(t *testing.T) *storage.EventRepository {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.RunMigrations(db))
	return storage.NewEventRepository(db)
}

func newTestCoordinator(t *testing.T, store LocalStore, rem RemoteSource, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{
		WithTempDir(t.TempDir()),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	c := New(store, rem, opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleEvent(id int64, name, date string) models.Event {
	return models.Event{
		ID:          models.Int64(id),
		Name:        name,
		Date:        date,
		Location:    "Town hall",
		Description: "Community event",
	}
}

func seed(t *testing.T, store *storage.EventRepository, events ...models.Event) {
	t.Helper()
	for _, e := range events {
		_, err := store.UpsertOne(context.Background(), e)
		require.NoError(t, err)
	}
}

func listAll(t *testing.T, store LocalStore) []models.Event {
	t.Helper()
	events, err := store.ListOrderByDate(context.Background())
	require.NoError(t, err)
	return events
}

func rejected(status int) error {
	return &remote.APIError{Method: "GET", Path: "/api/event", StatusCode: status, Body: "nope"}
}
