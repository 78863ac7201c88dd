package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/eventfinder/agent/internal/storage/models"
)

const eventColumns = `id, name, date, location, description, image, is_from_cache, last_sync_timestamp`

const upsertEventSQL = `
	INSERT INTO events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		date = excluded.date,
		location = excluded.location,
		description = excluded.description,
		image = excluded.image,
		is_from_cache = excluded.is_from_cache,
		last_sync_timestamp = excluded.last_sync_timestamp
	RETURNING local_id
`

// EventRepository provides data access for cached events.
// Every write is followed by a fresh snapshot pushed to all watchers.
type EventRepository struct {
	BaseRepository

	mu       sync.Mutex
	watchers map[*eventWatcher]struct{}

	// publishMu orders snapshot queries so watchers never see an older list after a newer one.
	publishMu sync.Mutex
}

type eventWatcher struct {
	ch chan []models.Event
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{
		BaseRepository: NewBaseRepository(db),
		watchers:       make(map[*eventWatcher]struct{}),
	}
}

// ListOrderByDate retrieves all events ordered by date ascending.
func (r *EventRepository) ListOrderByDate(ctx context.Context) ([]models.Event, error) {
	events := []models.Event{}
	err := r.DB().X().SelectContext(ctx, &events, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY date ASC, local_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return events, nil
}

// GetByID retrieves an event by its remote id. It returns nil, nil when absent.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := r.DB().X().GetContext(ctx, &event, `
		SELECT `+eventColumns+` FROM events WHERE id = ?
	`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}

	return &event, nil
}

// UpsertMany inserts or replaces events in a single transaction.
// Rows with an id replace the existing row carrying that id.
func (r *EventRepository) UpsertMany(ctx context.Context, events []models.Event) error {
	err := r.Transaction(func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, upsertEventSQL)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			var localID int64
			if err := stmt.QueryRowxContext(ctx, upsertArgs(e)...).Scan(&localID); err != nil {
				return fmt.Errorf("upserting event %s: %w", describe(e), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.publish(ctx)
	return nil
}

// UpsertOne inserts or replaces a single event and returns its local row id.
func (r *EventRepository) UpsertOne(ctx context.Context, event models.Event) (int64, error) {
	var localID int64
	if err := r.DB().QueryRowContext(ctx, upsertEventSQL, upsertArgs(event)...).Scan(&localID); err != nil {
		return 0, fmt.Errorf("upserting event %s: %w", describe(event), err)
	}

	r.publish(ctx)
	return localID, nil
}

// Update overwrites the row with the event's id.
func (r *EventRepository) Update(ctx context.Context, event models.Event) error {
	if event.ID == nil {
		return fmt.Errorf("updating event: %w", ErrNotFound)
	}

	result, err := r.DB().ExecContext(ctx, `
		UPDATE events SET
			name = ?, date = ?, location = ?, description = ?, image = ?,
			is_from_cache = ?, last_sync_timestamp = ?
		WHERE id = ?
	`,
		event.Name, event.Date, event.Location, event.Description, event.Image,
		event.IsFromCache, event.LastSyncTimestamp, *event.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("event %d: %w", *event.ID, ErrNotFound)
	}

	r.publish(ctx)
	return nil
}

// DeleteByID removes the event with the given remote id and reports whether a
// row was removed. Deleting a missing row is not an error.
func (r *EventRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting event: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return false, nil
	}
	r.publish(ctx)
	return true, nil
}

// DeleteAll clears the cache.
func (r *EventRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.DB().ExecContext(ctx, "DELETE FROM events"); err != nil {
		return fmt.Errorf("clearing events: %w", err)
	}

	r.publish(ctx)
	return nil
}

// SetCacheFlagForAll sets is_from_cache on every row.
func (r *EventRepository) SetCacheFlagForAll(ctx context.Context, fromCache bool) error {
	if _, err := r.DB().ExecContext(ctx, "UPDATE events SET is_from_cache = ?", fromCache); err != nil {
		return fmt.Errorf("updating cache status: %w", err)
	}

	r.publish(ctx)
	return nil
}

// MaxLastSyncTimestamp returns the newest confirmation time, or nil when the cache is empty.
func (r *EventRepository) MaxLastSyncTimestamp(ctx context.Context) (*int64, error) {
	var ts sql.NullInt64
	if err := r.DB().QueryRowContext(ctx, "SELECT MAX(last_sync_timestamp) FROM events").Scan(&ts); err != nil {
		return nil, fmt.Errorf("querying last sync timestamp: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Int64, nil
}

// Count returns the total number of cached events and how many of them are flagged stale.
func (r *EventRepository) Count(ctx context.Context) (total, cached int, err error) {
	err = r.DB().QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_from_cache THEN 1 ELSE 0 END), 0) FROM events
	`).Scan(&total, &cached)
	if err != nil {
		return 0, 0, fmt.Errorf("counting events: %w", err)
	}
	return total, cached, nil
}

// Watch returns a channel carrying the full date-ordered list: once immediately
// and again after every write. A slow reader only sees the newest list.
// The channel is closed when ctx is done.
func (r *EventRepository) Watch(ctx context.Context) <-chan []models.Event {
	w := &eventWatcher{ch: make(chan []models.Event, 1)}

	r.mu.Lock()
	r.watchers[w] = struct{}{}
	r.mu.Unlock()

	r.publishTo(ctx, []*eventWatcher{w})

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers, w)
		close(w.ch)
		r.mu.Unlock()
	}()

	return w.ch
}

func (r *EventRepository) publish(ctx context.Context) {
	r.mu.Lock()
	if len(r.watchers) == 0 {
		r.mu.Unlock()
		return
	}
	targets := make([]*eventWatcher, 0, len(r.watchers))
	for w := range r.watchers {
		targets = append(targets, w)
	}
	r.mu.Unlock()

	r.publishTo(ctx, targets)
}

func (r *EventRepository) publishTo(ctx context.Context, targets []*eventWatcher) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	// The write already happened; a canceled caller must not stop watchers from seeing it.
	events, err := r.ListOrderByDate(context.WithoutCancel(ctx))
	if err != nil {
		log.Printf("Failed to refresh event watchers: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range targets {
		if _, ok := r.watchers[w]; !ok {
			continue
		}
		select {
		case <-w.ch:
		default:
		}
		w.ch <- events
	}
}

func upsertArgs(e models.Event) []any {
	return []any{
		e.ID, e.Name, e.Date, e.Location, e.Description, e.Image,
		e.IsFromCache, e.LastSyncTimestamp,
	}
}

func describe(e models.Event) string {
	if e.ID == nil {
		return fmt.Sprintf("%q (pending)", e.Name)
	}
	return fmt.Sprintf("%d", *e.ID)
}
