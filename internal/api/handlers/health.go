// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/eventfinder/agent/internal/api/middleware"
	"github.com/eventfinder/agent/internal/eventsync"
)

// Pinger reports whether the local store is usable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		middleware.WriteJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusSource provides the figures reported by the status endpoint.
type StatusSource interface {
	State() eventsync.State
	LastSync(ctx context.Context) (*time.Time, error)
}

// EventCounter counts cached events.
type EventCounter interface {
	Count(ctx context.Context) (total, cached int, err error)
}

// ScheduleInfo describes the periodic sync schedule.
type ScheduleInfo interface {
	Schedule() string
	NextRun() *time.Time
}

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	Version          string     `json:"version"`
	IsLoading        bool       `json:"is_loading"`
	DataFromCache    bool       `json:"data_from_cache"`
	EventsCount      int        `json:"events_count"`
	CachedEvents     int        `json:"cached_events"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	Schedule         string     `json:"schedule,omitempty"`
	NextSyncAt       *time.Time `json:"next_sync_at,omitempty"`
	WebSocketClients int        `json:"websocket_clients"`
}

// Status returns a handler that provides sync status information.
// schedule and clients may be nil.
func Status(version string, src StatusSource, counter EventCounter, schedule ScheduleInfo, clients ClientCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state := src.State()

		total, cached, err := counter.Count(ctx)
		if err != nil {
			log.Printf("Failed to count events: %v", err)
		}

		lastSync, err := src.LastSync(ctx)
		if err != nil {
			log.Printf("Failed to read last sync time: %v", err)
		}

		response := StatusResponse{
			Version:       version,
			IsLoading:     state.IsLoading,
			DataFromCache: state.DataFromCache,
			EventsCount:   total,
			CachedEvents:  cached,
			LastSyncAt:    lastSync,
		}
		if schedule != nil {
			response.Schedule = schedule.Schedule()
			response.NextSyncAt = schedule.NextRun()
		}
		if clients != nil {
			response.WebSocketClients = clients.ClientCount()
		}

		middleware.WriteJSON(w, http.StatusOK, response)
	}
}
