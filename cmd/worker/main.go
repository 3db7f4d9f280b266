// Package main provides the entrypoint for the smart city background worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/config"
	"github.com/syntaxsurfers/smartcity/internal/database"
	"github.com/syntaxsurfers/smartcity/internal/energy"
	"github.com/syntaxsurfers/smartcity/internal/news"
	"github.com/syntaxsurfers/smartcity/internal/panel"
	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
	"github.com/syntaxsurfers/smartcity/internal/telemetry"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
	"github.com/syntaxsurfers/smartcity/internal/water"
	"github.com/syntaxsurfers/smartcity/internal/weather"
	"github.com/syntaxsurfers/smartcity/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "smartcity-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting smart city worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.NewConfig(cfg, serviceName, Version))
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

	providers := resilience.NewRegistry()
	newClient := func(name string) *resilience.Client {
		clientCfg := resilience.DefaultClientConfig(name)
		clientCfg.Timeout = cfg.Providers.Timeout
		clientCfg.MaxRetries = cfg.Providers.MaxRetries
		clientCfg.Registry = providers
		clientCfg.Breaker.OnStateChange = resilience.LogStateChanges(log)
		return resilience.NewClient(clientCfg)
	}
	if err := telemetry.RegisterProviderHealth(tp.Meter, providers); err != nil {
		log.Error().Err(err).Msg("failed to register provider health gauge")
	}

	// Panel loads made by the refresh job are scraped from the worker's /metrics.
	promRegistry := prometheus.NewRegistry()
	loader := panel.NewLoader(log, panel.NewMetrics(promRegistry))

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.DefaultRefreshConfig(),
		Logger: log,
		Weather: weather.NewService(weather.ServiceConfig{
			BaseURL:     cfg.Providers.WeatherURL,
			APIKey:      cfg.Providers.WeatherKey,
			DefaultCity: cfg.Dashboard.City,
			Fetcher:     newClient("weatherapi"),
			Loader:      loader,
		}),
		Traffic: traffic.NewInsightsService(traffic.InsightsServiceConfig{
			BaseURL: cfg.Providers.TomTomURL,
			APIKey:  cfg.Providers.TomTomKey,
			Fetcher: newClient("tomtom"),
			Loader:  loader,
		}),
		Energy: energy.NewService(energy.ServiceConfig{
			BaseURL: cfg.Providers.EIAURL,
			APIKey:  cfg.Providers.EIAKey,
			Fetcher: newClient("eia"),
			Loader:  loader,
		}),
		Water: water.NewService(water.ServiceConfig{
			BaseURL: cfg.Providers.USGSURL,
			Fetcher: newClient("usgs"),
			Loader:  loader,
		}),
	})

	// News articles are shared with the API only through PostgreSQL.
	var newsRepo news.Repository = news.NewInMemoryRepository()
	if cfg.Store.Backend == config.StorePostgres {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		newsRepo = news.NewPostgresRepository(pool)
		log.Info().Str("database", cfg.Database.Name).Msg("database connected")
	} else {
		log.Warn().Str("backend", cfg.Store.Backend).Msg("news articles are kept in worker memory only")
	}

	newsService := news.NewService(news.ServiceConfig{
		Searcher: news.NewClient(news.ClientConfig{
			BaseURL: cfg.Providers.NewsURL,
			APIKey:  cfg.Providers.NewsKey,
			Fetcher: newClient("thenewsapi"),
		}),
		Repository: newsRepo,
		Logger:     log,
	})

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		RefreshJob: refreshJob,
		News:       newsService,
		Logger:     log,
	})

	// Scheduled jobs
	scheduler := worker.NewScheduler(5*time.Minute, log)
	if err := scheduler.Add(worker.ScheduledJob{
		Name:     worker.JobNewsFetch,
		Interval: cfg.Worker.NewsInterval,
		Run:      dispatcher.NewsFetch,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule news fetch")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Pub/Sub triggered jobs
	if cfg.Worker.PubSubProject != "" && cfg.Worker.PubSubSubscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProject,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured - only scheduled jobs will run")
	}

	// Health endpoint for the container platform
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"refresh": refreshJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
