package eventsync

import (
	"context"
	"fmt"
	"log"
	"time"
)

// SyncResult describes the outcome of one SyncEvents run.
type SyncResult struct {
	Reachable     bool      `json:"reachable"`
	EventsFetched int       `json:"events_fetched"`
	DataFromCache bool      `json:"data_from_cache"`
	SyncedAt      time.Time `json:"synced_at"`
}

// SyncEvents pulls the full event list from the remote source into the local store.
//
// Concurrent calls share a single in-flight run and its result. A caller whose
// ctx ends stops waiting without cancelling the run for the others; only Close
// cancels a run. When the remote source is unreachable the store is left
// untouched, the state is flagged stale, and no error is returned. Rows are
// flagged stale before the fetch, so a failed fetch leaves every row marked as
// unconfirmed.
func (c *Coordinator) SyncEvents(ctx context.Context) (SyncResult, error) {
	ch := c.inflight.DoChan("sync", func() (any, error) {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return SyncResult{}, fmt.Errorf("syncing events: %w", ErrClosed)
		}
		c.running.Add(1)
		c.mu.Unlock()
		defer c.running.Done()

		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		defer context.AfterFunc(c.lifetime, cancel)()

		return c.syncEvents(runCtx)
	})

	select {
	case res := <-ch:
		return res.Val.(SyncResult), res.Err
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	}
}

func (c *Coordinator) syncEvents(ctx context.Context) (SyncResult, error) {
	c.state.update(func(s *State) { s.IsLoading = true })
	defer c.state.update(func(s *State) { s.IsLoading = false })

	result := SyncResult{SyncedAt: c.now().UTC()}

	if !c.remote.IsReachable(ctx) {
		c.markStale()
		result.DataFromCache = true
		log.Printf("Remote source unreachable, serving cached events")
		return result, nil
	}
	result.Reachable = true

	if err := c.store.SetCacheFlagForAll(ctx, true); err != nil {
		c.markStale()
		result.DataFromCache = true
		return result, localFailure("flagging cached events", err)
	}

	remoteEvents, err := c.remote.ListEvents(ctx)
	if err != nil {
		c.markStale()
		result.DataFromCache = true
		log.Printf("Failed to fetch events: %v", err)
		return result, remoteFailure("fetching events", err)
	}

	syncedAt := c.now()
	for i := range remoteEvents {
		remoteEvents[i] = remoteEvents[i].Confirmed(syncedAt)
	}

	if err := c.store.UpsertMany(ctx, remoteEvents); err != nil {
		c.markStale()
		result.DataFromCache = true
		return result, localFailure("storing fetched events", err)
	}

	c.state.update(func(s *State) { s.DataFromCache = false })
	result.EventsFetched = len(remoteEvents)
	result.SyncedAt = syncedAt.UTC()

	log.Printf("Events updated from remote source: %d", len(remoteEvents))
	return result, nil
}

// ResetAndSync clears the cache and repopulates it from the remote source.
// Nothing is cleared while the remote source is unreachable.
func (c *Coordinator) ResetAndSync(ctx context.Context) (SyncResult, error) {
	if !c.remote.IsReachable(ctx) {
		c.markStale()
		return SyncResult{DataFromCache: true, SyncedAt: c.now().UTC()},
			fmt.Errorf("resetting cache: %w", ErrUnreachable)
	}

	if err := c.store.DeleteAll(ctx); err != nil {
		return SyncResult{}, localFailure("clearing cache", err)
	}
	log.Printf("Cleared event cache")

	return c.SyncEvents(ctx)
}

func (c *Coordinator) markStale() {
	c.state.update(func(s *State) { s.DataFromCache = true })
}
