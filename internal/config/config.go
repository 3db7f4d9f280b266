// Package config loads runtime configuration for the smart city services.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store backends for user records.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is the root configuration shared by cmd/api and cmd/worker.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Providers ProvidersConfig `koanf:"providers"`
	Identity  IdentityConfig  `koanf:"identity"`
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Worker    WorkerConfig    `koanf:"worker"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           string        `koanf:"port"`
	Environment    string        `koanf:"environment"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	RequireTLS     bool          `koanf:"require_tls"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	// SampleRatio is the share of new traces kept; 1 keeps all.
	SampleRatio float64 `koanf:"sample_ratio"`
}

// ProvidersConfig holds upstream API keys and the shared call policy.
// Keys are not validated at startup; a missing key surfaces as an upstream failure.
type ProvidersConfig struct {
	TomTomKey    string `koanf:"tomtom_key"`
	WeatherKey   string `koanf:"weather_key"`
	GeocodingKey string `koanf:"geocoding_key"`
	EIAKey       string `koanf:"eia_key"`
	NewsKey      string `koanf:"news_key"`

	TomTomURL    string `koanf:"tomtom_url"`
	WeatherURL   string `koanf:"weather_url"`
	GeocodingURL string `koanf:"geocoding_url"`
	EIAURL       string `koanf:"eia_url"`
	USGSURL      string `koanf:"usgs_url"`
	NewsURL      string `koanf:"news_url"`

	// Timeout bounds every outbound call.
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries uint64 `koanf:"max_retries"`
}

// IdentityConfig configures the hosted identity provider integration.
type IdentityConfig struct {
	WebhookSecret string `koanf:"webhook_secret"`
	// SessionKeyPEM is the PEM encoded RSA public key used to verify session tokens.
	SessionKeyPEM string `koanf:"session_key_pem"`
	Issuer        string `koanf:"issuer"`
}

// StoreConfig selects the user record backend.
type StoreConfig struct {
	Backend      string `koanf:"backend"`
	DefaultPlace string `koanf:"default_place"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	Migrate         bool          `koanf:"migrate"`
}

// URL returns the PostgreSQL connection URL.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// DashboardConfig configures the overview poller.
type DashboardConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	City            string        `koanf:"city"`
	Latitude        float64       `koanf:"latitude"`
	Longitude       float64       `koanf:"longitude"`
}

// WorkerConfig configures cmd/worker.
type WorkerConfig struct {
	NewsInterval       time.Duration `koanf:"news_interval"`
	PubSubProject      string        `koanf:"pubsub_project"`
	PubSubSubscription string        `koanf:"pubsub_subscription"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			Environment:    "development",
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		Providers: ProvidersConfig{
			TomTomURL:    "https://api.tomtom.com",
			WeatherURL:   "https://api.weatherapi.com/v1",
			GeocodingURL: "https://maps.googleapis.com/maps/api",
			EIAURL:       "https://api.eia.gov/v2",
			USGSURL:      "https://waterservices.usgs.gov/nwis",
			NewsURL:      "https://api.thenewsapi.com/v1",
			Timeout:      10 * time.Second,
			MaxRetries:   0,
		},
		Store: StoreConfig{
			Backend:      StoreMemory,
			DefaultPlace: "Palghar",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "smartcity",
			Password:        "localdev",
			Name:            "smartcity",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Dashboard: DashboardConfig{
			RefreshInterval: time.Minute,
			City:            "Palghar",
			Latitude:        19.3835727,
			Longitude:       72.8294563,
		},
		Worker: WorkerConfig{
			NewsInterval: 24 * time.Hour,
		},
	}
}

// envKeys maps deployment environment variables onto config keys.
var envKeys = map[string]string{
	"APP_PORT":                    "server.port",
	"APP_ENV":                     "server.environment",
	"ALLOWED_ORIGINS":             "server.allowed_origins",
	"REQUIRE_TLS":                 "server.require_tls",
	"OTEL_ENABLED":                "telemetry.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "telemetry.otlp_endpoint",
	"OTEL_TRACES_SAMPLER_ARG":     "telemetry.sample_ratio",
	"TOMTOM_API_KEY":              "providers.tomtom_key",
	"WEATHER_API_KEY":             "providers.weather_key",
	"GOOGLE_MAPS_API_KEY":         "providers.geocoding_key",
	"EIA_API_KEY":                 "providers.eia_key",
	"NEWS_API_KEY":                "providers.news_key",
	"PROVIDER_TIMEOUT":            "providers.timeout",
	"PROVIDER_MAX_RETRIES":        "providers.max_retries",
	"CLERK_WEBHOOK_SECRET":        "identity.webhook_secret",
	"CLERK_JWT_KEY":               "identity.session_key_pem",
	"CLERK_ISSUER":                "identity.issuer",
	"STORE_BACKEND":               "store.backend",
	"DEFAULT_PLACE":               "store.default_place",
	"DB_HOST":                     "database.host",
	"DB_PORT":                     "database.port",
	"DB_USER":                     "database.user",
	"DB_PASSWORD":                 "database.password",
	"DB_NAME":                     "database.name",
	"DB_SSL_MODE":                 "database.ssl_mode",
	"DB_MAX_OPEN_CONNS":           "database.max_open_conns",
	"DB_MAX_IDLE_CONNS":           "database.max_idle_conns",
	"DB_CONN_MAX_LIFETIME":        "database.conn_max_lifetime",
	"DB_MIGRATE":                  "database.migrate",
	"REDIS_ADDR":                  "redis.addr",
	"REDIS_PASSWORD":              "redis.password",
	"REDIS_DB":                    "redis.db",
	"DASHBOARD_REFRESH_INTERVAL":  "dashboard.refresh_interval",
	"NEWS_FETCH_INTERVAL":         "worker.news_interval",
	"PUBSUB_PROJECT_ID":           "worker.pubsub_project",
	"PUBSUB_SUBSCRIPTION":         "worker.pubsub_subscription",
}

// Load builds a Config by layering, from low to high precedence:
//  1. Default()
//  2. a YAML file named by SMARTCITY_CONFIG
//  3. environment variables, after loading .env when present
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if path := os.Getenv("SMARTCITY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Unmapped variables resolve to "" and are skipped by the provider.
	envProvider := env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key := envKeys[name]
		if key == "server.allowed_origins" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList splits a comma separated value, dropping blank items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port must not be empty")
	}
	c.Store.Backend = strings.ToLower(c.Store.Backend)
	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("store.backend %q is not one of memory, redis, postgres", c.Store.Backend)
	}
	if c.Providers.Timeout <= 0 {
		return errors.New("providers.timeout must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio %v is outside [0, 1]", c.Telemetry.SampleRatio)
	}
	return nil
}
