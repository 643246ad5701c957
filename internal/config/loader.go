// Package config loads the service configuration. Sources are layered:
// built-in defaults, then a config file, then IMAGED_* environment
// variables (optionally from .env files); CLI flags are applied last by
// the command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"imaged/internal/common/fsutil"
	"imaged/internal/params"
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr" env:"IMAGED_ADDR" validate:"required"`

	WorkerURL                   string `json:"worker_url" yaml:"worker_url" toml:"worker_url" env:"IMAGED_WORKER_URL" validate:"required,http_url"`
	WorkerAPIKey                string `json:"worker_api_key" yaml:"worker_api_key" toml:"worker_api_key" env:"IMAGED_WORKER_API_KEY"`
	WorkerTimeoutSeconds        int    `json:"worker_timeout_seconds" yaml:"worker_timeout_seconds" toml:"worker_timeout_seconds" env:"IMAGED_WORKER_TIMEOUT_SECONDS" validate:"gte=0"`
	WorkerConnectTimeoutSeconds int    `json:"worker_connect_timeout_seconds" yaml:"worker_connect_timeout_seconds" toml:"worker_connect_timeout_seconds" env:"IMAGED_WORKER_CONNECT_TIMEOUT_SECONDS" validate:"gte=0"`

	SyncTimeoutSeconds    int    `json:"sync_timeout_seconds" yaml:"sync_timeout_seconds" toml:"sync_timeout_seconds" env:"IMAGED_SYNC_TIMEOUT_SECONDS" validate:"gte=0"`
	MaxInflight           int    `json:"max_inflight" yaml:"max_inflight" toml:"max_inflight" env:"IMAGED_MAX_INFLIGHT" validate:"gte=1"`
	MaxQueueDepth         int    `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth" env:"IMAGED_MAX_QUEUE_DEPTH" validate:"gtefield=MaxInflight"`
	QueueWaitSeconds      int    `json:"queue_wait_seconds" yaml:"queue_wait_seconds" toml:"queue_wait_seconds" env:"IMAGED_QUEUE_WAIT_SECONDS" validate:"gte=1"`
	StreamBuffer          int    `json:"stream_buffer" yaml:"stream_buffer" toml:"stream_buffer" env:"IMAGED_STREAM_BUFFER" validate:"gte=1"`
	StreamDropPolicy      string `json:"stream_drop_policy" yaml:"stream_drop_policy" toml:"stream_drop_policy" env:"IMAGED_STREAM_DROP_POLICY" validate:"oneof=drop_newest drop_oldest"`
	WebhookTimeoutSeconds int    `json:"webhook_timeout_seconds" yaml:"webhook_timeout_seconds" toml:"webhook_timeout_seconds" env:"IMAGED_WEBHOOK_TIMEOUT_SECONDS" validate:"gte=1"`

	JobStore      string `json:"job_store" yaml:"job_store" toml:"job_store" env:"IMAGED_JOB_STORE" validate:"oneof=memory redis"`
	RedisURL      string `json:"redis_url" yaml:"redis_url" toml:"redis_url" env:"IMAGED_REDIS_URL" validate:"required_if=JobStore redis"`
	JobTTLSeconds int    `json:"job_ttl_seconds" yaml:"job_ttl_seconds" toml:"job_ttl_seconds" env:"IMAGED_JOB_TTL_SECONDS" validate:"gte=1"`

	PresetsDir   string `json:"presets_dir" yaml:"presets_dir" toml:"presets_dir" env:"IMAGED_PRESETS_DIR"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" env:"IMAGED_MAX_BODY_BYTES" validate:"gte=0"`

	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level" env:"IMAGED_LOG" validate:"oneof=trace debug info warn error"`
	HTTPLogLevel string `json:"http_log_level" yaml:"http_log_level" toml:"http_log_level" env:"IMAGED_LOG_LEVEL" validate:"omitempty,oneof=off error info debug"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" env:"IMAGED_CORS_ENABLED"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"IMAGED_CORS_ORIGINS" envSeparator:","`
	CORSMethods []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods" env:"IMAGED_CORS_METHODS" envSeparator:","`
	CORSHeaders []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers" env:"IMAGED_CORS_HEADERS" envSeparator:","`

	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint" toml:"otlp_endpoint" env:"IMAGED_OTLP_ENDPOINT"`
	OTLPInsecure bool   `json:"otlp_insecure" yaml:"otlp_insecure" toml:"otlp_insecure" env:"IMAGED_OTLP_INSECURE"`

	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds" env:"IMAGED_SHUTDOWN_TIMEOUT_SECONDS" validate:"gte=1"`

	// TemplateOverrides re-bases the parameter template at startup.
	TemplateOverrides map[string]any `json:"template_overrides" yaml:"template_overrides" toml:"template_overrides"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                        ":8888",
		WorkerURL:                   "http://127.0.0.1:7866",
		WorkerTimeoutSeconds:        0,
		WorkerConnectTimeoutSeconds: 5,
		SyncTimeoutSeconds:          600,
		MaxInflight:                 1,
		MaxQueueDepth:               32,
		QueueWaitSeconds:            30,
		StreamBuffer:                16,
		StreamDropPolicy:            "drop_newest",
		WebhookTimeoutSeconds:       10,
		JobStore:                    "memory",
		JobTTLSeconds:               3600,
		MaxBodyBytes:                16 << 20,
		LogLevel:                    "info",
		HTTPLogLevel:                "info",
		CORSMethods:                 []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSHeaders:                 []string{"Content-Type", "Authorization", "X-Log-Level"},
		ShutdownTimeoutSeconds:      10,
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
// Zero values mean "unspecified"; use LoadInto to layer a file over defaults.
func Load(path string) (Config, error) {
	var cfg Config
	err := LoadInto(path, &cfg)
	return cfg, err
}

// LoadInto decodes the file at path over cfg. Keys absent from the file
// leave cfg untouched.
func LoadInto(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	case ".json":
		err = json.Unmarshal(b, cfg)
	case ".toml":
		err = toml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if !fsutil.PathExists(p) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with IMAGED_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env config: %w", err)
	}
	return nil
}

// Resolve layers defaults, the optional file at path and the environment,
// then validates the result.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadInto(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and that TemplateOverrides apply to the
// built-in template.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %s %s", fe.Field(), fe.Tag(), fe.Param())
		}
		return err
	}
	if _, err := c.Template(); err != nil {
		return fmt.Errorf("invalid config template_overrides: %w", err)
	}
	return nil
}

// Template returns the built-in parameter template with TemplateOverrides applied.
func (c Config) Template() (params.Template, error) {
	return params.Default().Overlay(c.TemplateOverrides)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c Config) WorkerTimeout() time.Duration        { return seconds(c.WorkerTimeoutSeconds) }
func (c Config) WorkerConnectTimeout() time.Duration { return seconds(c.WorkerConnectTimeoutSeconds) }
func (c Config) SyncTimeout() time.Duration          { return seconds(c.SyncTimeoutSeconds) }
func (c Config) QueueWait() time.Duration            { return seconds(c.QueueWaitSeconds) }
func (c Config) WebhookTimeout() time.Duration       { return seconds(c.WebhookTimeoutSeconds) }
func (c Config) JobTTL() time.Duration               { return seconds(c.JobTTLSeconds) }
func (c Config) ShutdownTimeout() time.Duration      { return seconds(c.ShutdownTimeoutSeconds) }
