package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventfinder/agent/internal/api"
	"github.com/eventfinder/agent/internal/config"
	"github.com/eventfinder/agent/internal/eventsync"
	"github.com/eventfinder/agent/internal/websocket"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync agent and its local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	log.Printf("Starting eventfinder agent (version: %s)...", version)

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	broadcaster := websocket.NewEventBroadcaster(hub)
	go hub.Run(ctx)

	a, err := openApp(cfg, eventsync.WithStateListener(broadcaster.BroadcastSyncState))
	if err != nil {
		return err
	}
	defer a.Close()

	go broadcaster.Follow(ctx, a.coordinator.Events(ctx))

	scheduler := eventsync.NewScheduler(a.coordinator, broadcaster)
	if err := scheduler.Start(cfg.Sync.Schedule, cfg.Sync.OnStart); err != nil {
		return err
	}
	defer scheduler.Stop()

	config.Watch(opts.v, func(next config.Config) {
		if err := scheduler.Reschedule(next.Sync.Schedule); err != nil {
			log.Printf("Keeping previous sync schedule: %v", err)
		}
		if next.Remote != cfg.Remote || next.Listen != cfg.Listen || next.DataDir != cfg.DataDir {
			log.Println("Remote, listen and data_dir changes take effect after restart")
		}
	})

	router := api.NewRouter(api.Services{
		Version:     version,
		DB:          a.db,
		Events:      a.events,
		Coordinator: a.coordinator,
		Scheduler:   scheduler,
		Hub:         hub,
		Images:      a.client.ImageURL,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Println("Server stopped")
	return nil
}
