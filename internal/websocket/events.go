package websocket

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/eventfinder/agent/internal/eventsync"
	"github.com/eventfinder/agent/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
// It remembers the latest state and event list so new clients start from a snapshot.
type EventBroadcaster struct {
	hub *Hub

	mu     sync.Mutex
	state  []byte
	events []byte
}

// NewEventBroadcaster creates a new event broadcaster and installs its
// snapshot as the hub's welcome message.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	b := &EventBroadcaster{hub: hub}
	hub.SetWelcome(b.snapshot)
	return b
}

// BroadcastEventsChanged sends the full, date-ordered event list.
func (b *EventBroadcaster) BroadcastEventsChanged(events []models.Event) {
	cached := 0
	for _, e := range events {
		if e.IsFromCache {
			cached++
		}
	}

	data := b.encode(NewMessage(TypeEventsChanged, EventsPayload{
		Events: events,
		Count:  len(events),
		Cached: cached,
	}))
	if data == nil {
		return
	}

	b.mu.Lock()
	b.events = data
	b.mu.Unlock()
	b.hub.Broadcast(data)
}

// BroadcastSyncState sends a coordinator state change. It satisfies eventsync.StateListener.
func (b *EventBroadcaster) BroadcastSyncState(state eventsync.State) {
	data := b.encode(NewMessage(TypeSyncStateChanged, SyncStatePayload{
		IsLoading:     state.IsLoading,
		DataFromCache: state.DataFromCache,
	}))
	if data == nil {
		return
	}

	b.mu.Lock()
	b.state = data
	b.mu.Unlock()
	b.hub.Broadcast(data)
}

// BroadcastSyncCompleted sends a sync completed event.
func (b *EventBroadcaster) BroadcastSyncCompleted(result eventsync.SyncResult) {
	payload := SyncCompletedPayload{
		Status:        "success",
		Reachable:     result.Reachable,
		EventsFetched: result.EventsFetched,
		DataFromCache: result.DataFromCache,
		SyncedAt:      result.SyncedAt,
	}
	if !result.Reachable {
		payload.Status = "offline"
	}

	b.broadcast(NewMessage(TypeSyncCompleted, payload))
}

// BroadcastSyncError sends a sync error event.
func (b *EventBroadcaster) BroadcastSyncError(err error) {
	b.broadcast(NewMessage(TypeSyncError, SyncErrorPayload{
		Error:   syncErrorCode(err),
		Message: err.Error(),
	}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

// Follow broadcasts every list received on events until the channel closes or ctx is done.
func (b *EventBroadcaster) Follow(ctx context.Context, events <-chan []models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case list, ok := <-events:
			if !ok {
				return
			}
			b.BroadcastEventsChanged(list)
		}
	}
}

// snapshot returns the latest state and event list messages.
func (b *EventBroadcaster) snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]byte, 0, 2)
	if b.state != nil {
		out = append(out, b.state)
	}
	if b.events != nil {
		out = append(out, b.events)
	}
	return out
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	if data := b.encode(msg); data != nil {
		b.hub.Broadcast(data)
	}
}

func (b *EventBroadcaster) encode(msg Message) []byte {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return nil
	}
	return data
}

func syncErrorCode(err error) string {
	switch {
	case errors.Is(err, eventsync.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, eventsync.ErrRemoteRejected):
		return "remote_rejected"
	case errors.Is(err, eventsync.ErrLocalStore):
		return "local_store"
	default:
		return "sync_error"
	}
}
