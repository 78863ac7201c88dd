// Package models contains the domain models for the application.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical serialization of Event.Date.
const DateLayout = "2006-01-02"

// Event is a single event record as cached locally and served by the remote API.
type Event struct {
	// ID is assigned by the remote source; nil means the row only exists locally.
	ID          *int64  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Date        string  `json:"date" db:"date"`
	Location    string  `json:"location" db:"location"`
	Description string  `json:"description" db:"description"`
	Image       *string `json:"image,omitempty" db:"image"`

	// IsFromCache is true when the row was not confirmed by the latest successful sync.
	IsFromCache bool `json:"isFromCache" db:"is_from_cache"`
	// LastSyncTimestamp is epoch milliseconds of the last confirmation against the remote source.
	LastSyncTimestamp int64 `json:"lastSyncTimestamp" db:"last_sync_timestamp"`
}

// HasID reports whether the remote source has assigned an id.
func (e Event) HasID() bool {
	return e.ID != nil
}

// Confirmed returns a copy of e marked fresh as of syncedAt.
func (e Event) Confirmed(syncedAt time.Time) Event {
	e.IsFromCache = false
	e.LastSyncTimestamp = syncedAt.UnixMilli()
	return e
}

// Pending returns a copy of e marked as not confirmed by the remote source.
func (e Event) Pending() Event {
	e.IsFromCache = true
	return e
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range []string{"name", "date", "location", "description"} {
		if msg, ok := e.Fields[name]; ok {
			parts = append(parts, name+": "+msg)
		}
	}
	return "invalid event: " + strings.Join(parts, ", ")
}

// Validate checks the user-editable fields.
func (e Event) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(e.Name) == "" {
		fields["name"] = "must not be blank"
	}
	if strings.TrimSpace(e.Location) == "" {
		fields["location"] = "must not be blank"
	}
	if strings.TrimSpace(e.Description) == "" {
		fields["description"] = "must not be blank"
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		fields["date"] = fmt.Sprintf("must be formatted as %s", "yyyy-MM-dd")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Int64 returns a pointer to v, for building events with an assigned id.
func Int64(v int64) *int64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}
