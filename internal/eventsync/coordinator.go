// Package eventsync keeps the local event cache reconciled with the remote event API.
//
// The Coordinator is the only writer that talks to both sides. Presentation
// code reads the cache through it and issues add/update/delete commands; each
// command takes the network path when the remote source is reachable and an
// offline path otherwise.
package eventsync

import (
	"context"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eventfinder/agent/internal/storage/models"
)

// LocalStore is the persisted event cache.
type LocalStore interface {
	Watch(ctx context.Context) <-chan []models.Event
	ListOrderByDate(ctx context.Context) ([]models.Event, error)
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	UpsertMany(ctx context.Context, events []models.Event) error
	UpsertOne(ctx context.Context, event models.Event) (int64, error)
	Update(ctx context.Context, event models.Event) error
	DeleteByID(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) error
	SetCacheFlagForAll(ctx context.Context, fromCache bool) error
	MaxLastSyncTimestamp(ctx context.Context) (*int64, error)
}

// RemoteSource is the networked event API.
type RemoteSource interface {
	IsReachable(ctx context.Context) bool
	ListEvents(ctx context.Context) ([]models.Event, error)
	CreateEvent(ctx context.Context, event models.Event, imagePath string) (models.Event, error)
	UpdateEvent(ctx context.Context, id int64, event models.Event) (models.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
}

// Coordinator reconciles the LocalStore with the RemoteSource.
type Coordinator struct {
	store  LocalStore
	remote RemoteSource
	state  *stateHub

	// inflight collapses concurrent SyncEvents calls into one remote fetch.
	inflight singleflight.Group

	// lifetime bounds sync runs, which outlive the callers waiting on them.
	lifetime context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	closed   bool
	running  sync.WaitGroup

	tempDir string
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTempDir sets where image handles are materialized before upload.
func WithTempDir(dir string) Option {
	return func(c *Coordinator) { c.tempDir = dir }
}

// WithClock overrides the time source used for sync timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithStateListener registers a callback for every state change.
func WithStateListener(l StateListener) Option {
	return func(c *Coordinator) { c.state.addListener(l) }
}

// New creates a coordinator over the given store and remote source.
func New(store LocalStore, remote RemoteSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		remote:  remote,
		state:   newStateHub(),
		tempDir: os.TempDir(),
		now:     time.Now,
	}
	c.lifetime, c.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels any in-flight sync and waits for it to finish. Later syncs
// fail with ErrClosed.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.running.Wait()
	return nil
}

// State returns the latest published state.
func (c *Coordinator) State() State {
	return c.state.get()
}

// Subscribe returns every state change, starting with the current state, in
// publication order. The channel closes when ctx is done.
func (c *Coordinator) Subscribe(ctx context.Context) <-chan State {
	return c.state.subscribe(ctx)
}

// Events returns the live, date-ordered event list.
func (c *Coordinator) Events(ctx context.Context) <-chan []models.Event {
	return c.store.Watch(ctx)
}

// ListEvents returns the current date-ordered event list.
func (c *Coordinator) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := c.store.ListOrderByDate(ctx)
	if err != nil {
		return nil, localFailure("listing events", err)
	}
	return events, nil
}

// GetEventByID returns the cached event with the given remote id, or ErrNotFound.
func (c *Coordinator) GetEventByID(ctx context.Context, id int64) (models.Event, error) {
	event, err := c.store.GetByID(ctx, id)
	if err != nil {
		return models.Event{}, localFailure("getting event", err)
	}
	if event == nil {
		return models.Event{}, ErrNotFound
	}
	return *event, nil
}

// LastSync returns when the cache was last confirmed against the remote source,
// or nil if it never was.
func (c *Coordinator) LastSync(ctx context.Context) (*time.Time, error) {
	ts, err := c.store.MaxLastSyncTimestamp(ctx)
	if err != nil {
		return nil, localFailure("reading last sync", err)
	}
	if ts == nil || *ts == 0 {
		return nil, nil
	}
	t := time.UnixMilli(*ts).UTC()
	return &t, nil
}
