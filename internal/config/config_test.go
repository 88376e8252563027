package config

import (
	"reflect"
	"testing"
	"time"
)

// clearEnv blanks every key Load reads; viper treats empty env values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "DATABASE_URL", "DB_MAX_CONNS", "DB_TX_ISOLATION", "DB_TRACING",
		"JWT_PRIVATE_KEY", "JWT_PUBLIC_KEY", "JWT_ISSUER", "JWT_AUDIENCE", "JWT_ACCESS_TTL",
		"JWT_REFRESH_TTL", "CLOCK_TOLERANCE", "BCRYPT_COST", "APP_ENV", "LOG_LEVEL",
		"KAFKA_BROKERS", "KAFKA_ORDER_EVENTS_TOPIC", "KAFKA_GROUP_ID",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME",
		"LOKI_URL", "POLICY_FILE", "SCHEDULER_INTERVAL", "SEED_ADMIN_USERNAME", "SEED_ADMIN_PASSWORD",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "asset-lending-auth" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTAudience != "asset-lending-api" {
		t.Errorf("JWTAudience = %q", cfg.JWTAudience)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.DBTxIsolation != "read_committed" {
		t.Errorf("DBTxIsolation = %q, want read_committed", cfg.DBTxIsolation)
	}
	if cfg.DBMaxConns != 25 {
		t.Errorf("DBMaxConns = %d, want 25", cfg.DBMaxConns)
	}
	if cfg.ClockToleranceDuration() != 5*time.Second {
		t.Errorf("ClockToleranceDuration = %v, want 5s", cfg.ClockToleranceDuration())
	}
	if cfg.SchedulerIntervalDuration() != 30*time.Second {
		t.Errorf("SchedulerIntervalDuration = %v, want 30s", cfg.SchedulerIntervalDuration())
	}
	if cfg.KafkaOrderEventsTopic != "asset-lending-events" {
		t.Errorf("KafkaOrderEventsTopic = %q", cfg.KafkaOrderEventsTopic)
	}
	if cfg.SeedAdminUsername != "admin" {
		t.Errorf("SeedAdminUsername = %q, want admin", cfg.SeedAdminUsername)
	}
	if cfg.IsProduction() {
		t.Error("IsProduction should be false by default")
	}
	if cfg.LokiURL != "" || cfg.PolicyFile != "" {
		t.Errorf("LokiURL = %q, PolicyFile = %q; want both empty", cfg.LokiURL, cfg.PolicyFile)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("JWT_ISSUER", "custom-issuer")
	t.Setenv("BCRYPT_COST", "14")
	t.Setenv("DB_TX_ISOLATION", "serializable")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.DBTxIsolation != "serializable" {
		t.Errorf("DBTxIsolation = %q", cfg.DBTxIsolation)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction should be true")
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_InvalidIsolation(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_TX_ISOLATION", "chaos")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should reject unknown isolation level")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestLoad_InvalidClockTolerance(t *testing.T) {
	testCases := []string{"soon", "-1s"}
	for _, v := range testCases {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CLOCK_TOLERANCE", v)
			if _, err := Load(); err == nil {
				t.Errorf("Load should reject CLOCK_TOLERANCE=%q", v)
			}
		})
	}
}

func TestDurationAccessors_FallBackOnInvalid(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		got  func(*Config) time.Duration
		want time.Duration
	}{
		{"access valid", Config{JWTAccessTTL: "30m"}, (*Config).AccessTTL, 30 * time.Minute},
		{"access invalid", Config{JWTAccessTTL: "invalid"}, (*Config).AccessTTL, 15 * time.Minute},
		{"access zero", Config{JWTAccessTTL: "0"}, (*Config).AccessTTL, 15 * time.Minute},
		{"access negative", Config{JWTAccessTTL: "-5m"}, (*Config).AccessTTL, 15 * time.Minute},
		{"refresh valid", Config{JWTRefreshTTL: "336h"}, (*Config).RefreshTTL, 336 * time.Hour},
		{"refresh invalid", Config{JWTRefreshTTL: "x"}, (*Config).RefreshTTL, 168 * time.Hour},
		{"tolerance zero", Config{ClockTolerance: "0s"}, (*Config).ClockToleranceDuration, 0},
		{"tolerance invalid", Config{ClockTolerance: "x"}, (*Config).ClockToleranceDuration, 5 * time.Second},
		{"scheduler valid", Config{SchedulerInterval: "1m"}, (*Config).SchedulerIntervalDuration, time.Minute},
		{"scheduler zero", Config{SchedulerInterval: "0"}, (*Config).SchedulerIntervalDuration, 30 * time.Second},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			if got := tc.got(&cfg); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:1 , ,b:2 ", []string{"a:1", "b:2"}},
	}
	for _, tc := range testCases {
		cfg := &Config{KafkaBrokers: tc.in}
		got := cfg.KafkaBrokersList()
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
