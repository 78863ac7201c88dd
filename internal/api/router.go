// Package api provides HTTP routing and handlers for the local event API.
package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/eventfinder/agent/internal/api/handlers"
	"github.com/eventfinder/agent/internal/api/middleware"
	"github.com/eventfinder/agent/internal/eventsync"
	"github.com/eventfinder/agent/internal/storage"
	"github.com/eventfinder/agent/internal/websocket"
)

// Services bundles what the router needs. Scheduler and Images may be nil.
type Services struct {
	Version     string
	DB          *storage.DB
	Events      *storage.EventRepository
	Coordinator *eventsync.Coordinator
	Scheduler   *eventsync.Scheduler
	Hub         *websocket.Hub
	Images      handlers.ImageResolver
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.Logging("/api/health"))
	r.Use(middleware.ErrorRecovery)

	var trigger handlers.SyncTrigger = backgroundSync{s.Coordinator}
	var schedule handlers.ScheduleInfo
	if s.Scheduler != nil {
		trigger = s.Scheduler
		schedule = s.Scheduler
	}

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.Version, s.Coordinator, s.Events, schedule, s.Hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")

	// Event endpoints
	api.HandleFunc("/events", handlers.ListEvents(s.Coordinator, s.Images)).Methods("GET")
	api.HandleFunc("/events", handlers.CreateEvent(s.Coordinator, s.Images)).Methods("POST")
	api.HandleFunc("/events/sync", handlers.SyncEvents(trigger)).Methods("POST")
	api.HandleFunc("/events/{id:[0-9]+}", handlers.GetEvent(s.Coordinator, s.Images)).Methods("GET")
	api.HandleFunc("/events/{id:[0-9]+}", handlers.UpdateEvent(s.Coordinator, s.Images)).Methods("PUT")
	api.HandleFunc("/events/{id:[0-9]+}", handlers.DeleteEvent(s.Coordinator)).Methods("DELETE")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "No such endpoint")
	})

	return r
}

// backgroundSync triggers a coordinator sync when no scheduler is running.
type backgroundSync struct {
	coordinator *eventsync.Coordinator
}

func (b backgroundSync) TriggerSync() {
	go func() {
		if _, err := b.coordinator.SyncEvents(context.Background()); err != nil {
			log.Printf("Event sync failed: %v", err)
		}
	}()
}
