package eventsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/eventfinder/agent/internal/storage"
	"github.com/eventfinder/agent/internal/storage/models"
)

// AddEvent creates an event.
//
// With an image and a reachable remote source the event is created remotely
// and the returned record is cached as confirmed; any failure on that path is
// returned and nothing is stored. Otherwise the candidate is cached locally
// without an id and flagged as unconfirmed.
func (c *Coordinator) AddEvent(ctx context.Context, candidate models.Event, image ImageHandle) (models.Event, error) {
	if candidate.HasID() {
		return models.Event{}, fmt.Errorf("adding event: id must be unset: %w", ErrInvalidArgument)
	}

	if image != nil && c.remote.IsReachable(ctx) {
		return c.addRemote(ctx, candidate, image)
	}

	pending := candidate.Pending()
	if _, err := c.store.UpsertOne(ctx, pending); err != nil {
		return models.Event{}, localFailure("caching new event", err)
	}
	log.Printf("Cached event %q locally, pending upload", pending.Name)
	return pending, nil
}

func (c *Coordinator) addRemote(ctx context.Context, candidate models.Event, image ImageHandle) (models.Event, error) {
	imagePath, err := materializeImage(c.tempDir, image)
	if err != nil {
		return models.Event{}, fmt.Errorf("adding event: %w: %w", ErrInvalidArgument, err)
	}
	defer func() {
		if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove temp image %s: %v", imagePath, err)
		}
	}()

	created, err := c.remote.CreateEvent(ctx, candidate, imagePath)
	if err != nil {
		log.Printf("Failed to create event %q: %v", candidate.Name, err)
		return models.Event{}, remoteFailure("creating event", err)
	}

	created = created.Confirmed(c.now())
	if _, err := c.store.UpsertOne(ctx, created); err != nil {
		return models.Event{}, localFailure("caching created event", err)
	}
	log.Printf("Created event %q (id %d)", created.Name, derefID(created.ID))
	return created, nil
}

// UpdateEvent updates an existing event.
//
// With a reachable remote source the record returned by the remote source is
// cached as confirmed; a remote failure is returned and the cache is left
// unchanged. Offline, the submitted record is cached verbatim and flagged as
// unconfirmed; an id that is not cached matches no row and still succeeds.
func (c *Coordinator) UpdateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	if !event.HasID() {
		return models.Event{}, fmt.Errorf("updating event: id must be set: %w", ErrInvalidArgument)
	}
	id := *event.ID

	if !c.remote.IsReachable(ctx) {
		pending := event.Pending()
		err := c.store.Update(ctx, pending)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			log.Printf("Event %d is not cached, offline update not stored", id)
		case err != nil:
			return models.Event{}, localFailure("caching event update", err)
		default:
			log.Printf("Cached update for event %d locally", id)
		}
		return pending, nil
	}

	updated, err := c.remote.UpdateEvent(ctx, id, event)
	if err != nil {
		log.Printf("Failed to update event %d: %v", id, err)
		return models.Event{}, remoteFailure("updating event", err)
	}
	if updated.ID == nil {
		updated.ID = models.Int64(id)
	}

	updated = updated.Confirmed(c.now())
	if _, err := c.store.UpsertOne(ctx, updated); err != nil {
		return models.Event{}, localFailure("caching updated event", err)
	}
	log.Printf("Updated event %d", id)
	return updated, nil
}

// DeleteEvent removes an event. A nil id is a no-op.
//
// The remote delete is attempted when the remote source is reachable; its
// failure is logged and does not prevent the local delete.
func (c *Coordinator) DeleteEvent(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}

	if c.remote.IsReachable(ctx) {
		if err := c.remote.DeleteEvent(ctx, *id); err != nil {
			log.Printf("Failed to delete event %d remotely, deleting locally only: %v", *id, err)
		}
	}

	deleted, err := c.store.DeleteByID(ctx, *id)
	if err != nil {
		return localFailure("deleting cached event", err)
	}
	if !deleted {
		log.Printf("Event %d was not cached, nothing deleted locally", *id)
		return nil
	}
	log.Printf("Deleted event %d", *id)
	return nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
