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
const DefaultConfigFile = "agentdeck.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "AGENTDECK_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTDECK_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTDECK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTDECK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTDECK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AGENTDECK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AGENTDECK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Otel.Service, "AGENTDECK_OTEL_SERVICE")
	setString(&cfg.MCP.Addr, "AGENTDECK_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "AGENTDECK_MCP_API_KEY")
	setString(&cfg.Logging.Level, "AGENTDECK_LOG_LEVEL")
	setBool(&cfg.Logging.Async, "AGENTDECK_LOG_ASYNC")
	setDuration(&cfg.Engine.CancelGrace, "AGENTDECK_CANCEL_GRACE")
	setInt(&cfg.Engine.QueueCap, "AGENTDECK_QUEUE_CAP")
	setInt(&cfg.Engine.IntentBuffer, "AGENTDECK_INTENT_BUFFER")
	setString(&cfg.Agents.DefaultRunner, "AGENTDECK_DEFAULT_RUNNER")
	setString(&cfg.Agents.DefaultModel, "AGENTDECK_DEFAULT_MODEL")
	setString(&cfg.Agents.DefaultEffort, "AGENTDECK_DEFAULT_EFFORT")
	setString(&cfg.PTY.Shell, "AGENTDECK_PTY_SHELL")
	setInt(&cfg.PTY.RingBytes, "AGENTDECK_PTY_RING_BYTES")
	setInt(&cfg.PTY.MaxPerUser, "AGENTDECK_PTY_MAX_SESSIONS")
	setString(&cfg.Attachments.Dir, "AGENTDECK_ATTACHMENTS_DIR")
	setInt64(&cfg.Attachments.MaxBytes, "AGENTDECK_ATTACHMENTS_MAX_BYTES")
	setInt64(&cfg.Attachments.MaxConcurrent, "AGENTDECK_ATTACHMENTS_MAX_CONCURRENT")
	setInt64(&cfg.Attachments.CacheSizeMB, "AGENTDECK_ATTACHMENTS_CACHE_MB")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Engine.CancelGrace <= 0 {
		return errors.New("engine.cancel_grace must be positive")
	}
	if cfg.Agents.DefaultRunner == "" {
		return errors.New("agents.default_runner is required")
	}
	if _, ok := cfg.Agents.Tools[cfg.Agents.DefaultRunner]; !ok {
		return fmt.Errorf("agents.default_runner %q has no tool entry", cfg.Agents.DefaultRunner)
	}
	if cfg.PTY.RingBytes < 1024 {
		return errors.New("pty.ring_bytes must be >= 1024")
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
