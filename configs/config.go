package configs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the final application configuration, merged from built-in
// defaults, an optional YAML file and environment variables (highest
// precedence). Every variable resolves under the "MCPODOO_" prefix first
// and its bare name second, so both MCPODOO_ODOO_URL and ODOO_URL work.
type Config struct {
	// Odoo connection.
	OdooURL      string        `envconfig:"ODOO_URL" yaml:"odoo_url"`
	OdooDB       string        `envconfig:"ODOO_DB" yaml:"odoo_db"`
	OdooUsername string        `envconfig:"ODOO_USERNAME" yaml:"odoo_username"`
	OdooPassword string        `envconfig:"ODOO_PASSWORD" yaml:"odoo_password"`
	OdooAPIKey   string        `envconfig:"ODOO_API_KEY" yaml:"odoo_api_key"`
	OdooTimeout  time.Duration `envconfig:"ODOO_TIMEOUT" yaml:"odoo_timeout"`

	// Serving.
	ListenAddr        string        `envconfig:"LISTEN_ADDR" yaml:"listen_addr"`
	ToolTimeout       time.Duration `envconfig:"TOOL_TIMEOUT" yaml:"tool_timeout"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" yaml:"heartbeat_interval"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" yaml:"session_ttl"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`

	// Observability.
	LogLevel                 string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"otel_exporter_otlp_endpoint"`
	OtelExporterOtlpInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" yaml:"otel_exporter_otlp_insecure"`
}

// Default returns the built-in defaults. They live in code rather than in
// struct tags: envconfig re-applies tag defaults on every Process call,
// which would overwrite file-provided values during the merge.
func Default() Config {
	return Config{
		OdooTimeout:              60 * time.Second,
		ListenAddr:               ":8080",
		ToolTimeout:              60 * time.Second,
		HeartbeatInterval:        30 * time.Second,
		SessionTTL:               time.Hour,
		ShutdownTimeout:          10 * time.Second,
		LogLevel:                 "info",
		OtelExporterOtlpInsecure: true,
	}
}

// Load builds the configuration in three layers: defaults, then the YAML
// file when one is given (path argument, or MCPODOO_CONFIG_FILE when the
// argument is empty), then environment variables on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MCPODOO_CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file '%s': %w", path, err)
		}
		slog.Info("Loaded configuration from file.", "path", path)
	}

	if err := envconfig.Process("mcpodoo", &cfg); err != nil {
		return nil, fmt.Errorf("process environment variables: %w", err)
	}
	return &cfg, nil
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// Validate checks the settings the Odoo gateway cannot start without.
// Password and API key are interchangeable; the API key wins when both are
// set.
func (c *Config) Validate() error {
	var missing []string
	if c.OdooURL == "" {
		missing = append(missing, "ODOO_URL")
	}
	if c.OdooDB == "" {
		missing = append(missing, "ODOO_DB")
	}
	if c.OdooUsername == "" {
		missing = append(missing, "ODOO_USERNAME")
	}
	if c.OdooPassword == "" && c.OdooAPIKey == "" {
		missing = append(missing, "ODOO_PASSWORD (or ODOO_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
