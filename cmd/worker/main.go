// Package main provides the entrypoint for the AirAdvisor assessment worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"

	"github.com/airadvisor/airadvisor/internal/bootstrap"
	"github.com/airadvisor/airadvisor/internal/config"
	"github.com/airadvisor/airadvisor/internal/telemetry"
	"github.com/airadvisor/airadvisor/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airadvisor-worker"

	cfg, err := config.Load("")
	if err != nil {
		bootLog := bootstrap.NewLogger(os.Stderr, config.AppConfig{}, serviceName, Version)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := bootstrap.NewLogger(os.Stdout, cfg.App, serviceName, Version)
	log.Info().Str("build_time", BuildTime).Msg("starting AirAdvisor worker")

	if cfg.PubSub.ProjectID == "" {
		log.Fatal().Msg("pubsub.project_id is required")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}
	defer components.Close()

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub client")
	}
	defer client.Close()

	publisher := worker.NewPubSubPublisher(client, cfg.PubSub.ResultsTopicID, log)
	defer publisher.Stop()

	processor, err := worker.NewProcessor(worker.ProcessorConfig{
		Service:            components.Assessment,
		Holder:             components.Holder,
		ModelPath:          cfg.Model.Path,
		PollutantHolder:    components.PollutantHolder,
		PollutantModelPath: cfg.Model.PollutantPath,
		ModelDir:           cfg.Model.ArtifactDir(),
		Registry:           components.Registry,
		Publisher:          publisher,
		Concurrency:        cfg.PubSub.Concurrency,
		Logger:             log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create processor")
	}

	handler, err := worker.NewPubSubHandler(worker.PubSubConfig{
		Client:           client,
		SubscriptionName: cfg.PubSub.SubscriptionID,
		Processor:        processor,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}

	// Worker also exposes health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := processor.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":                  "healthy",
			"version":                 Version,
			"modelAvailable":          components.Assessment.ModelAvailable(r.Context()),
			"pollutantModelAvailable": components.Assessment.PollutantModelAvailable(r.Context()),
			"jobsProcessed":           stats.JobsProcessed,
			"jobsFailed":              stats.JobsFailed,
		})
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start health check server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Start receiving jobs
	go func() {
		if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub receive stopped")
			cancel()
		}
	}()

	// Wait for interrupt signal or receive failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
