// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBMaxConns caps the pgx pool size.
	DBMaxConns int32 `mapstructure:"DB_MAX_CONNS"`
	// DBTxIsolation is the isolation level for unit-of-work transactions:
	// read_committed, repeatable_read or serializable.
	DBTxIsolation string `mapstructure:"DB_TX_ISOLATION"`
	// DBTracing enables the otelpgx query tracer on the pool.
	DBTracing bool `mapstructure:"DB_TRACING"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token and session lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// ClockTolerance is the leeway applied to expiry and issued-at comparisons (e.g. "5s").
	ClockTolerance string `mapstructure:"CLOCK_TOLERANCE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// Env is the application environment ("development", "production").
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// KafkaBrokers is a comma-separated list of brokers; lifecycle events are disabled when empty.
	KafkaBrokers          string `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderEventsTopic string `mapstructure:"KAFKA_ORDER_EVENTS_TOPIC"`
	KafkaGroupID          string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; telemetry is no-op when empty.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// LokiURL is the Grafana Loki base URL the worker forwards consumed events to; disabled when empty.
	LokiURL string `mapstructure:"LOKI_URL"`

	// PolicyFile optionally replaces the embedded authorization Rego policy (inline Rego or path).
	PolicyFile string `mapstructure:"POLICY_FILE"`

	// MetricsAddr is where the worker serves Prometheus metrics; disabled when empty. The server
	// exposes GET /metrics on HTTP_ADDR.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	// SchedulerInterval is how often the worker sweeps orders due for activation or overdue marking.
	SchedulerInterval string `mapstructure:"SCHEDULER_INTERVAL"`

	// Seed-only: credentials of the initial admin account.
	SeedAdminUsername string `mapstructure:"SEED_ADMIN_USERNAME"`
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_TX_ISOLATION", "read_committed")
	v.SetDefault("DB_TRACING", false)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "asset-lending-auth")
	v.SetDefault("JWT_AUDIENCE", "asset-lending-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("CLOCK_TOLERANCE", "5s")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_ORDER_EVENTS_TOPIC", "asset-lending-events")
	v.SetDefault("KAFKA_GROUP_ID", "asset-lending-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "asset-lending")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("METRICS_ADDR", ":9091")
	v.SetDefault("SCHEDULER_INTERVAL", "30s")
	v.SetDefault("SEED_ADMIN_USERNAME", "admin")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	switch cfg.DBTxIsolation {
	case "read_committed", "repeatable_read", "serializable":
	default:
		return nil, errors.New("config: DB_TX_ISOLATION must be read_committed, repeatable_read or serializable")
	}

	if d, err := time.ParseDuration(cfg.ClockTolerance); err != nil || d < 0 {
		return nil, errors.New("config: CLOCK_TOLERANCE must be a non-negative duration")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// ClockToleranceDuration parses ClockTolerance. Returns 5s if unset or invalid.
func (c *Config) ClockToleranceDuration() time.Duration {
	d, err := time.ParseDuration(c.ClockTolerance)
	if err != nil || d < 0 {
		return 5 * time.Second
	}
	return d
}

// SchedulerIntervalDuration parses SchedulerInterval. Returns 30s if unset or invalid.
func (c *Config) SchedulerIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SchedulerInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables event publishing.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}
