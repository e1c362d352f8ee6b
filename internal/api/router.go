// Package api provides the HTTP API for AirAdvisor.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/api/handler"
	"github.com/airadvisor/airadvisor/internal/api/middleware"
	"github.com/airadvisor/airadvisor/internal/api/response"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/auth"
	"github.com/airadvisor/airadvisor/internal/featureflags"
	"github.com/airadvisor/airadvisor/internal/provider/resilience"
)

// RateLimits sets per-route-group request budgets. Zero values use the
// middleware defaults.
type RateLimits struct {
	Estimates   middleware.RateLimitConfig
	LiveWeather middleware.RateLimitConfig
	Metadata    middleware.RateLimitConfig
	Admin       middleware.RateLimitConfig
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	RequireTLS         bool
	RateLimits         RateLimits
	JWTService         *auth.JWTService
	Assessment         *assessment.Service
	FeatureFlagService *featureflags.Service
	Registry           *resilience.Registry
	Database           handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airadvisor-api"
	}

	limits := cfg.RateLimits.withDefaults()

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement (app.require_tls)
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, r.Method+" is not supported for "+r.URL.Path)
	})

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Service:   cfg.Assessment,
		Flags:     cfg.FeatureFlagService,
		Registry:  cfg.Registry,
		Database:  cfg.Database,
	})
	estimateHandler := handler.NewEstimateHandler(cfg.Assessment, cfg.Logger)
	legacyHandler := handler.NewLegacyHandler(cfg.Assessment, cfg.Logger)
	metadataHandler := handler.NewMetadataHandler(cfg.Assessment)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.JWTService)

	// Rate limit middleware for the different endpoint categories
	estimateRateLimit := middleware.RateLimitByIP(limits.Estimates)
	liveRateLimit := middleware.RateLimitByIP(limits.LiveWeather)
	metadataRateLimit := middleware.RateLimitByIP(limits.Metadata)

	// Legacy form endpoints, wire-compatible with existing clients
	r.Group(func(r chi.Router) {
		r.Use(estimateRateLimit)
		r.Use(middleware.RequireForm)
		r.Post("/predict", legacyHandler.Predict)
		r.Post("/predict_health", legacyHandler.PredictHealth)
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Estimate endpoints (public)
		r.Route("/estimates", func(r chi.Router) {
			r.Use(middleware.RequireJSON)
			r.With(estimateRateLimit).Post("/pollutants", estimateHandler.EstimatePollutants)
			r.With(estimateRateLimit).Post("/weather", estimateHandler.EstimateWeather)
			// Live estimates call an upstream provider - strict rate limiting
			r.With(liveRateLimit).Post("/weather:live", estimateHandler.EstimateLiveWeather)
			r.With(liveRateLimit).Post("/pollutants:live", estimateHandler.EstimateLivePollutants)
		})

		r.With(estimateRateLimit, middleware.RequireJSON).Post("/advisories", estimateHandler.CreateAdvisory)

		// Metadata endpoints (public) - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(metadataRateLimit)
			r.Get("/presets", metadataHandler.ListPresets)
			r.Get("/enums", metadataHandler.GetEnums)
		})

		// Admin endpoints (admin tokens only)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Use(middleware.RateLimitBySubject(limits.Admin))

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.With(middleware.RequireJSON).Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}

func (l RateLimits) withDefaults() RateLimits {
	if l.Estimates.RequestLimit == 0 {
		l.Estimates = middleware.EstimateRateLimit
	}
	if l.LiveWeather.RequestLimit == 0 {
		l.LiveWeather = middleware.LiveWeatherRateLimit
	}
	if l.Metadata.RequestLimit == 0 {
		l.Metadata = middleware.MetadataRateLimit
	}
	if l.Admin.RequestLimit == 0 {
		l.Admin = middleware.AdminRateLimit
	}
	return l
}
