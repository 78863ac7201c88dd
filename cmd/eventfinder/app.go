package main

import (
	"fmt"
	"log"
	"os"

	"github.com/eventfinder/agent/internal/config"
	"github.com/eventfinder/agent/internal/eventsync"
	"github.com/eventfinder/agent/internal/remote"
	"github.com/eventfinder/agent/internal/storage"
)

// app holds the components shared by the serve, sync and list commands.
type app struct {
	db          *storage.DB
	events      *storage.EventRepository
	client      *remote.Client
	coordinator *eventsync.Coordinator
}

// openApp opens the local cache and wires the coordinator to the remote API.
func openApp(cfg config.Config, opts ...eventsync.Option) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %q: %w", cfg.DataDir, err)
	}

	db, err := storage.NewDB(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := storage.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Println("Database migrations complete")

	events := storage.NewEventRepository(db)
	client := remote.NewClient(remote.Config{
		BaseURL:       cfg.Remote.BaseURL,
		ImagesBaseURL: cfg.Remote.ImagesBaseURL,
		Timeout:       cfg.Remote.Timeout,
		ProbeTimeout:  cfg.Remote.ProbeTimeout,
	})
	if cfg.Remote.BaseURL == "" {
		log.Println("No remote.base_url configured, running offline")
	}

	opts = append([]eventsync.Option{eventsync.WithTempDir(cfg.TempDir())}, opts...)
	coordinator := eventsync.New(events, client, opts...)

	return &app{
		db:          db,
		events:      events,
		client:      client,
		coordinator: coordinator,
	}, nil
}

func (a *app) Close() error {
	a.coordinator.Close()
	return a.db.Close()
}
