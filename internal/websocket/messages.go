package websocket

import (
	"encoding/json"
	"time"

	"github.com/eventfinder/agent/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeEventsChanged    MessageType = "events.changed"
	TypeSyncStateChanged MessageType = "sync.state_changed"
	TypeSyncCompleted    MessageType = "sync.completed"
	TypeSyncError        MessageType = "sync.error"
	TypeNotification     MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// IncomingMessage is a command sent by a client.
type IncomingMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventsPayload is the payload for events.changed messages.
type EventsPayload struct {
	Events []models.Event `json:"events"`
	Count  int            `json:"count"`
	Cached int            `json:"cached"` // rows not confirmed by the last sync
}

// SyncStatePayload is the payload for sync.state_changed messages.
type SyncStatePayload struct {
	IsLoading     bool `json:"is_loading"`
	DataFromCache bool `json:"data_from_cache"`
}

// SyncCompletedPayload is the payload for sync.completed messages.
type SyncCompletedPayload struct {
	Status        string    `json:"status"` // "success" or "offline"
	Reachable     bool      `json:"reachable"`
	EventsFetched int       `json:"events_fetched"`
	DataFromCache bool      `json:"data_from_cache"`
	SyncedAt      time.Time `json:"synced_at"`
}

// SyncErrorPayload is the payload for sync.error messages.
type SyncErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
