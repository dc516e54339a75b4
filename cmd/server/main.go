package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/omrgest/internal/analyzer"
	"github.com/dgallion1/omrgest/internal/api"
	"github.com/dgallion1/omrgest/internal/config"
	"github.com/dgallion1/omrgest/internal/omr"
	"github.com/dgallion1/omrgest/internal/pipeline"
	"github.com/dgallion1/omrgest/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.HasAzureCredentials() {
		log.Warn("azure document intelligence credentials not set; every scan will fail until they are configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize history.
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	scans := store.NewScanRepository(db)

	// Initialize clients.
	client := analyzer.NewClient(analyzer.Options{
		Endpoint:     cfg.AzureEndpoint,
		APIKey:       cfg.AzureKey,
		Model:        cfg.AzureModel,
		APIVersion:   cfg.AzureAPIVersion,
		PollInterval: cfg.AzurePollInterval,
		Timeout:      cfg.AzureTimeout,
	})

	// Initialize pipeline.
	recognizer := omr.NewPipeline(cfg.OMR, pipeline.WithRetry(client, log), log)
	orch := pipeline.NewOrchestrator(cfg, recognizer, scans, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, scans, client, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		client.Close()
		if err := db.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	}()

	log.Info("starting omrgest", "port", cfg.Port, "model", client.Model(), "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
