// Package config loads and validates rosterctl configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ROSTER_API_BASE_URL.
const EnvPrefix = "ROSTER"

// Config captures all client configuration knobs loaded via Viper.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	History  HistoryConfig  `mapstructure:"history"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Download DownloadConfig `mapstructure:"download"`
	Output   OutputConfig   `mapstructure:"output"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// APIConfig points the client at the workflow service.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
	UserAgent      string `mapstructure:"user_agent"`
}

// StreamConfig bounds the event stream reader.
type StreamConfig struct {
	MaxEventBytes int `mapstructure:"max_event_bytes" validate:"gte=1024"`
	// Timezone renders log stamps; "Local" or an IANA name.
	Timezone string `mapstructure:"timezone"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// MetricsConfig enables the local metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// HistoryConfig enables Postgres run history when DSN is set.
type HistoryConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table" validate:"omitempty,max=63"`
}

// PubSubConfig enables completion notifications when both values are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ArchiveConfig selects where downloads go. A bucket wins over Dir.
type ArchiveConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DownloadConfig bounds concurrent file downloads.
type DownloadConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"gte=1,lte=32"`
}

// OutputConfig picks the default rendering.
type OutputConfig struct {
	Format string `mapstructure:"format" validate:"oneof=text json yaml"`
}

// ProgressConfig tunes the telemetry hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size" validate:"gt=0"`
	MaxBatchWaitMS int `mapstructure:"max_batch_wait_ms" validate:"gt=0"`
}

// New returns a Viper instance with defaults and environment binding applied.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the optional config file at path into v and returns the validated Config.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.user_agent", "rosterctl/0.1")
	v.SetDefault("stream.max_event_bytes", 4<<20)
	v.SetDefault("stream.timezone", "Local")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.table", "export_runs")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("archive.dir", "exports")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("download.concurrency", 4)
	v.SetDefault("output.format", "text")
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("progress.max_batch_wait_ms", 250)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q (value %v)", fieldKey(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	if c.Archive.Dir == "" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.dir or archive.gcs_bucket must be set")
	}
	return nil
}

// fieldKey turns a validator namespace like Config.API.BaseURL into the
// mapstructure key a user would set.
func fieldKey(namespace string) string {
	keys := map[string]string{
		"Config.API.BaseURL":             "api.base_url",
		"Config.API.TimeoutSeconds":      "api.timeout_seconds",
		"Config.Stream.MaxEventBytes":    "stream.max_event_bytes",
		"Config.Logging.Level":           "logging.level",
		"Config.Metrics.Addr":            "metrics.addr",
		"Config.History.Table":           "history.table",
		"Config.Download.Concurrency":    "download.concurrency",
		"Config.Output.Format":           "output.format",
		"Config.Progress.BufferSize":     "progress.buffer_size",
		"Config.Progress.MaxBatchWaitMS": "progress.max_batch_wait_ms",
	}
	if k, ok := keys[namespace]; ok {
		return k
	}
	return namespace
}

// Timeout converts api.timeout_seconds to a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// MaxBatchWait converts progress.max_batch_wait_ms to a duration.
func (c Config) MaxBatchWait() time.Duration {
	return time.Duration(c.Progress.MaxBatchWaitMS) * time.Millisecond
}

// Location resolves stream.timezone.
func (c Config) Location() (*time.Location, error) {
	switch tz := strings.TrimSpace(c.Stream.Timezone); tz {
	case "", "Local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid stream.timezone %q: %w", tz, err)
		}
		return loc, nil
	}
}

// HistoryEnabled reports whether run history should be recorded.
func (c Config) HistoryEnabled() bool {
	return c.History.DSN != ""
}

// NotificationsEnabled reports whether completion notifications should be published.
func (c Config) NotificationsEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.Topic != ""
}
