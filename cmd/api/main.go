// Package main provides the entrypoint for the AirAdvisor API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/airadvisor/airadvisor/internal/api"
	"github.com/airadvisor/airadvisor/internal/api/middleware"
	"github.com/airadvisor/airadvisor/internal/auth"
	"github.com/airadvisor/airadvisor/internal/bootstrap"
	"github.com/airadvisor/airadvisor/internal/config"
	"github.com/airadvisor/airadvisor/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airadvisor-api"

	cfg, err := config.Load("")
	if err != nil {
		bootLog := bootstrap.NewLogger(os.Stderr, config.AppConfig{}, serviceName, Version)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup structured logging
	log := bootstrap.NewLogger(os.Stdout, cfg.App, serviceName, Version)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting AirAdvisor API")

	// Initialize OpenTelemetry
	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics(nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{}, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build services")
		os.Exit(1)
	}
	defer components.Close()

	// Initialize JWT service
	if cfg.Auth.JWTSigningKey == "" {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.SigningKey(),
		Issuer:     cfg.Auth.Issuer,
		Expiry:     cfg.Auth.TokenExpiry,
	})

	routerCfg := api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		RequireTLS:         cfg.App.RequireTLS,
		RateLimits:         rateLimits(cfg.RateLimit),
		JWTService:         jwtService,
		Assessment:         components.Assessment,
		FeatureFlagService: components.Flags,
		Registry:           components.Registry,
	}
	if components.Pool != nil {
		routerCfg.Database = components.Pool
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// rateLimits maps configured per-minute budgets; zero keeps the router default.
func rateLimits(cfg config.RateLimitConfig) api.RateLimits {
	var limits api.RateLimits
	if cfg.EstimatesPerMinute > 0 {
		limits.Estimates = middleware.PerMinute(cfg.EstimatesPerMinute)
	}
	if cfg.AdminPerMinute > 0 {
		limits.Admin = middleware.PerMinute(cfg.AdminPerMinute)
	}
	return limits
}
