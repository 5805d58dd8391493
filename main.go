package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipforge/api"
	"clipforge/config"
	"clipforge/jobs"
	"clipforge/media"
	"clipforge/task"
	"clipforge/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	engine, err := media.NewFFmpeg(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize media engine: %v", err)
	}

	// The registry publishes to the hub and the hub routes control
	// messages back to the registry, so the notifier is installed in a
	// second step.
	registry := task.NewRegistry(nil, cfg.PollInterval)
	hub := ws.NewHub(registry)
	registry.SetNotifier(hub)

	runner := jobs.NewRunner(cfg, registry, engine)

	router := api.SetupRouter(cfg, runner, registry, hub)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
