package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "courseforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("COURSEFORGE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "COURSEFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "COURSEFORGE_CORS_ORIGIN")
	setInt64(&cfg.Server.BodyLimit, "COURSEFORGE_BODY_LIMIT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "COURSEFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "COURSEFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "COURSEFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "COURSEFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "COURSEFORGE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "COURSEFORGE_NATS_ENABLED")

	setString(&cfg.Cache.Backend, "COURSEFORGE_CACHE_BACKEND")
	setInt(&cfg.Cache.L1MaxSizeMB, "COURSEFORGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "COURSEFORGE_CACHE_L2_BUCKET")

	setString(&cfg.Logging.Level, "COURSEFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "COURSEFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "COURSEFORGE_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "COURSEFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "COURSEFORGE_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "COURSEFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "COURSEFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "COURSEFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "COURSEFORGE_RATE_MAX_IDLE_TIME")

	setString(&cfg.Idempotency.Bucket, "COURSEFORGE_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "COURSEFORGE_IDEMPOTENCY_TTL")

	setBool(&cfg.OTEL.Enabled, "COURSEFORGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "COURSEFORGE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "COURSEFORGE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "COURSEFORGE_OTEL_INSECURE")

	setString(&cfg.Enrollment.DefaultCurrency, "COURSEFORGE_DEFAULT_CURRENCY")
	setDuration(&cfg.Enrollment.MetricsWindow, "COURSEFORGE_METRICS_WINDOW")
	setInt(&cfg.Enrollment.MaxListLimit, "COURSEFORGE_MAX_LIST_LIMIT")

	setString(&cfg.Notify.SlackWebhookURL, "COURSEFORGE_SLACK_WEBHOOK_URL")
	setString(&cfg.Notify.ConsoleURL, "COURSEFORGE_CONSOLE_URL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	switch cfg.Cache.Backend {
	case CacheRistretto:
	case CacheTiered:
		if !cfg.NATS.Enabled {
			return errors.New("cache.backend tiered requires nats.enabled")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of ristretto, tiered", cfg.Cache.Backend)
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.Enrollment.MetricsWindow <= 0 {
		return errors.New("enrollment.metrics_window must be positive")
	}
	if cfg.Enrollment.MaxListLimit < 1 {
		return errors.New("enrollment.max_list_limit must be >= 1")
	}
	if cfg.Notify.SlackWebhookURL != "" && !cfg.NATS.Enabled {
		return errors.New("notify.slack_webhook_url requires nats.enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
