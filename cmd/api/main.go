// Package main provides the entrypoint for the smart city API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/api"
	"github.com/syntaxsurfers/smartcity/internal/api/handler"
	"github.com/syntaxsurfers/smartcity/internal/api/middleware"
	"github.com/syntaxsurfers/smartcity/internal/auth"
	"github.com/syntaxsurfers/smartcity/internal/config"
	"github.com/syntaxsurfers/smartcity/internal/dashboard"
	"github.com/syntaxsurfers/smartcity/internal/database"
	"github.com/syntaxsurfers/smartcity/internal/energy"
	"github.com/syntaxsurfers/smartcity/internal/geocode"
	"github.com/syntaxsurfers/smartcity/internal/identity"
	"github.com/syntaxsurfers/smartcity/internal/news"
	"github.com/syntaxsurfers/smartcity/internal/panel"
	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
	"github.com/syntaxsurfers/smartcity/internal/telemetry"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
	"github.com/syntaxsurfers/smartcity/internal/user"
	"github.com/syntaxsurfers/smartcity/internal/water"
	"github.com/syntaxsurfers/smartcity/internal/weather"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "smartcity-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting smart city API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.NewConfig(cfg, serviceName, Version))
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
	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	loader := panel.NewLoader(log, panel.NewMetrics(promRegistry))

	// Upstream clients, one circuit breaker per data source
	providers := resilience.NewRegistry()
	register := func(clientCfg resilience.ClientConfig) *resilience.Client {
		clientCfg.Timeout = cfg.Providers.Timeout
		clientCfg.Registry = providers
		clientCfg.Breaker.OnStateChange = resilience.LogStateChanges(log)
		return resilience.NewClient(clientCfg)
	}
	newClient := func(name string, retries uint64) *resilience.Client {
		clientCfg := resilience.DefaultClientConfig(name)
		clientCfg.MaxRetries = retries
		return register(clientCfg)
	}
	retries := cfg.Providers.MaxRetries

	if err := telemetry.RegisterProviderHealth(tp.Meter, providers); err != nil {
		log.Error().Err(err).Msg("failed to register provider health gauge")
	}

	// The proxy makes exactly one outbound call per request.
	proxy := traffic.NewProxy(traffic.ProxyConfig{
		BaseURL: cfg.Providers.TomTomURL,
		APIKey:  cfg.Providers.TomTomKey,
		Client:  register(traffic.ProxyClientConfig("tomtom-proxy")),
		Logger:  log,
	})

	tomtom := newClient("tomtom", retries)
	weatherSvc := weather.NewService(weather.ServiceConfig{
		BaseURL:     cfg.Providers.WeatherURL,
		APIKey:      cfg.Providers.WeatherKey,
		DefaultCity: cfg.Dashboard.City,
		Fetcher:     newClient("weatherapi", retries),
		Loader:      loader,
	})
	insightsSvc := traffic.NewInsightsService(traffic.InsightsServiceConfig{
		BaseURL: cfg.Providers.TomTomURL,
		APIKey:  cfg.Providers.TomTomKey,
		Fetcher: tomtom,
		Loader:  loader,
	})
	energySvc := energy.NewService(energy.ServiceConfig{
		BaseURL: cfg.Providers.EIAURL,
		APIKey:  cfg.Providers.EIAKey,
		Fetcher: newClient("eia", retries),
		Loader:  loader,
	})
	waterSvc := water.NewService(water.ServiceConfig{
		BaseURL: cfg.Providers.USGSURL,
		Fetcher: newClient("usgs", retries),
		Loader:  loader,
	})
	geocoder := geocode.NewClient(geocode.ClientConfig{
		BaseURL: cfg.Providers.GeocodingURL,
		APIKey:  cfg.Providers.GeocodingKey,
		Fetcher: newClient("geocoding", retries),
		Logger:  log,
	})
	log.Info().Int("providers", providers.Len()).Msg("upstream clients initialized")

	// Stores
	checks := map[string]handler.DependencyCheck{}
	userRepo, newsRepo, closeStores := openStores(ctx, cfg, checks, log)
	defer closeStores()

	userService := user.NewService(user.ServiceConfig{
		Repository:   userRepo,
		DefaultPlace: cfg.Store.DefaultPlace,
		Logger:       log,
	})
	log.Info().Str("backend", cfg.Store.Backend).Msg("user service initialized")

	newsService := news.NewService(news.ServiceConfig{
		Searcher: news.NewClient(news.ClientConfig{
			BaseURL: cfg.Providers.NewsURL,
			APIKey:  cfg.Providers.NewsKey,
			Fetcher: newClient("thenewsapi", retries),
		}),
		Repository: newsRepo,
		Logger:     log,
	})

	// Identity provider integration
	var webhook handler.EventProcessor
	if cfg.Identity.WebhookSecret != "" {
		webhookVerifier, err := identity.NewVerifier(cfg.Identity.WebhookSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid webhook secret")
		}
		webhook = identity.NewProcessor(identity.ProcessorConfig{
			Verifier: webhookVerifier,
			Users:    userService,
			Logger:   log,
		})
		log.Info().Msg("identity webhook initialized")
	} else {
		log.Warn().Msg("webhook secret not configured - user sync is disabled")
	}

	var verifier middleware.TokenVerifier
	if cfg.Identity.SessionKeyPEM != "" {
		sessionVerifier, err := auth.NewSessionVerifier(auth.SessionConfig{
			PublicKeyPEM: cfg.Identity.SessionKeyPEM,
			Issuer:       cfg.Identity.Issuer,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("invalid session public key")
		}
		verifier = sessionVerifier
	} else {
		log.Warn().Msg("session key not configured - authenticated endpoints will reject every request")
	}

	// Dashboard overview poller
	poller := dashboard.NewPoller(dashboard.PollerConfig{
		Weather:   weatherSvc,
		Traffic:   insightsSvc,
		Loader:    loader,
		City:      cfg.Dashboard.City,
		Latitude:  cfg.Dashboard.Latitude,
		Longitude: cfg.Dashboard.Longitude,
		Interval:  cfg.Dashboard.RefreshInterval,
		Logger:    log,
	})
	if err := poller.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start overview poller")
	}
	defer poller.Stop()

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequireTLS:     cfg.Server.RequireTLS,
		Verifier:       verifier,
		Traffic:        proxy,
		Panels: handler.PanelHandlerConfig{
			Weather:          weatherSvc,
			Energy:           energySvc,
			Water:            waterSvc,
			Traffic:          insightsSvc,
			Geocoder:         geocoder,
			Places:           userService,
			DefaultLatitude:  cfg.Dashboard.Latitude,
			DefaultLongitude: cfg.Dashboard.Longitude,
			Logger:           log,
		},
		Users:             userService,
		Webhook:           webhook,
		News:              newsService,
		Overview:          poller,
		Providers:         providers,
		Checks:            checks,
		PrometheusHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// openStores opens the configured backend and registers its readiness checks.
// News alerts live in PostgreSQL when it is the backend and in memory otherwise.
func openStores(
	ctx context.Context,
	cfg *config.Config,
	checks map[string]handler.DependencyCheck,
	log zerolog.Logger,
) (user.Repository, news.Repository, func()) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		client, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")
		checks["redis"] = redisCheck(client)
		return user.NewRedisRepository(client), news.NewInMemoryRepository(), func() { _ = client.Close() }

	case config.StorePostgres:
		if cfg.Database.Migrate {
			if err := database.Migrate(cfg.Database); err != nil {
				log.Fatal().Err(err).Msg("failed to apply migrations")
			}
			log.Info().Msg("database migrations applied")
		}
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Name).
			Msg("database connected")
		checks["database"] = postgresCheck(pool)
		return user.NewPostgresRepository(pool), news.NewPostgresRepository(pool), pool.Close

	default:
		log.Warn().Msg("using in-memory store - data is lost on restart")
		return user.NewInMemoryRepository(), news.NewInMemoryRepository(), func() {}
	}
}

func redisCheck(client *redis.Client) handler.DependencyCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func postgresCheck(pool *pgxpool.Pool) handler.DependencyCheck {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
