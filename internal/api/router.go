// Package api provides the HTTP API for the smart city dashboard.
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/api/handler"
	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/auth"
	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// AllowedOrigins lists the dashboard origins for CORS.
	AllowedOrigins []string
	// RequireTLS rejects plain HTTP requests.
	RequireTLS bool

	// Verifier checks session tokens. Without one, authenticated routes answer 401.
	Verifier middleware.TokenVerifier

	Traffic handler.TrafficQuerier
	Panels  handler.PanelHandlerConfig
	Users   handler.UserStore
	// Webhook is optional; /api/webhook/clerk is mounted only when set.
	Webhook  handler.EventProcessor
	News     handler.AlertSource
	Overview handler.OverviewSource

	Providers *resilience.Registry
	Checks    map[string]handler.DependencyCheck

	// PrometheusHandler serves /metrics when set.
	PrometheusHandler http.Handler
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "smartcity-api"
	}

	verifier := cfg.Verifier
	if verifier == nil {
		verifier = unconfiguredVerifier{}
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.CORS(cfg.AllowedOrigins))   // Browser dashboard origins
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	// Initialize handlers
	cfg.Panels.Logger = cfg.Logger
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Providers: cfg.Providers,
		Checks:    cfg.Checks,
	})
	trafficHandler := handler.NewTrafficHandler(cfg.Traffic, cfg.Logger)
	panelHandler := handler.NewPanelHandler(cfg.Panels)
	searchHandler := handler.NewSearchHandler(cfg.Panels.Geocoder)
	webhookHandler := handler.NewWebhookHandler(cfg.Webhook, cfg.Logger)
	meHandler := handler.NewMeHandler(cfg.Users, cfg.Logger)
	alertHandler := handler.NewAlertHandler(cfg.News, cfg.Logger)
	dashboardHandler := handler.NewDashboardHandler(cfg.Overview)

	// Create auth middleware
	authMiddleware := middleware.Auth(verifier)
	optionalAuth := middleware.OptionalAuth(verifier)

	// Create rate limit middleware for different endpoint categories
	proxyRateLimit := middleware.RateLimitByIP(middleware.ProxyRateLimit)         // 60 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	if cfg.PrometheusHandler != nil {
		r.Handle("/metrics", cfg.PrometheusHandler)
	}

	// Unversioned routes kept for the dashboard and identity provider
	r.Route("/api", func(r chi.Router) {
		r.With(proxyRateLimit).Get("/traffic", trafficHandler.Metric)
		if cfg.Webhook != nil {
			r.Post("/webhook/clerk", webhookHandler.Clerk)
		}
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

		// Traffic proxy, versioned alias
		r.With(proxyRateLimit).Get("/traffic", trafficHandler.Metric)

		// Panels (public, personalised when signed in)
		r.Route("/panels", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Use(standardRateLimit)
			r.Get("/weather", panelHandler.Weather)
			r.Get("/air-quality", panelHandler.AirQuality)
			r.Get("/energy", panelHandler.Energy)
			r.Get("/water", panelHandler.Water)
			r.Get("/traffic", panelHandler.Traffic)
		})

		// Search (public) - standard rate limiting
		r.With(standardRateLimit).Get("/search", searchHandler.Search)
		r.With(expensiveRateLimit).Get("/geocode", searchHandler.Geocode)

		r.With(standardRateLimit).Get("/dashboard/overview", dashboardHandler.Overview)

		// News alerts; refreshing calls the news provider for every keyword
		r.With(standardRateLimit).Get("/alerts", alertHandler.ListAlerts)
		r.With(authMiddleware, expensiveRateLimit).Post("/alerts:refresh", alertHandler.RefreshAlerts)

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit)) // 100 req/min per user
			r.Use(middleware.RequireJSON)
			r.Get("/", meHandler.GetMe)
			r.Get("/place", meHandler.GetPlace)
			r.Put("/place", meHandler.UpdatePlace)
			r.Get("/feedback", meHandler.GetFeedback)
			r.Put("/feedback", meHandler.SubmitFeedback)
		})
	})

	return r
}

// unconfiguredVerifier rejects every token when no session key is configured.
type unconfiguredVerifier struct{}

func (unconfiguredVerifier) UserID(string) (string, error) {
	return "", fmt.Errorf("%w: session verification is not configured", auth.ErrInvalidSessionToken)
}
