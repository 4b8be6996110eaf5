// Package config provides YAML-based configuration loading for lossyflow
// programs such as cmd/flowbench.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Swind/go-lossyflow/core"
)

// Config is the root application configuration.
type Config struct {
	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Scheduler holds defaults applied to every scheduler the program creates
	Scheduler SchedulerConfig `mapstructure:"scheduler"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Bench holds measurement harness parameters
	Bench BenchConfig `mapstructure:"bench"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SchedulerConfig mirrors the tunables of core.SchedulerConfig.
type SchedulerConfig struct {
	Name            string        `mapstructure:"name"`
	IdleInterval    time.Duration `mapstructure:"idle_interval"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
}

// MetricsConfig controls Prometheus exposure.
type MetricsConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Listen       string        `mapstructure:"listen"`
	Namespace    string        `mapstructure:"namespace"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// BenchConfig holds measurement harness parameters.
type BenchConfig struct {
	// Messages is the number of messages pushed per throughput run
	Messages int `mapstructure:"messages"`
	// Capacity is the channel capacity used by every harness channel
	Capacity int `mapstructure:"capacity"`
	// Stages is the number of identity filters in the latency pipeline
	Stages int `mapstructure:"stages"`
	// Samples is the number of latency samples taken
	Samples int `mapstructure:"samples"`
	// Format of the report: json or cbor
	Format string `mapstructure:"format"`
	// Output file for the report; empty writes to stdout
	Output string `mapstructure:"output"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: false,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/lossyflow.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Scheduler: SchedulerConfig{
			Name:            "scheduler",
			IdleInterval:    time.Millisecond,
			HistoryCapacity: 100,
		},
		Metrics: MetricsConfig{
			Enable:       false,
			Listen:       ":9464",
			Namespace:    "lossyflow",
			PollInterval: time.Second,
		},
		Bench: BenchConfig{
			Messages: 1_000_000,
			Capacity: 1024,
			Stages:   8,
			Samples:  1000,
			Format:   "json",
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix LOSSYFLOW and `.`/`-` are replaced with `_`.
// Example: LOSSYFLOW_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LOSSYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("scheduler.name", cfg.Scheduler.Name)
	v.SetDefault("scheduler.idle_interval", cfg.Scheduler.IdleInterval)
	v.SetDefault("scheduler.history_capacity", cfg.Scheduler.HistoryCapacity)
	v.SetDefault("metrics.enable", cfg.Metrics.Enable)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
	v.SetDefault("metrics.poll_interval", cfg.Metrics.PollInterval)
	v.SetDefault("bench.messages", cfg.Bench.Messages)
	v.SetDefault("bench.capacity", cfg.Bench.Capacity)
	v.SetDefault("bench.stages", cfg.Bench.Stages)
	v.SetDefault("bench.samples", cfg.Bench.Samples)
	v.SetDefault("bench.format", cfg.Bench.Format)
	v.SetDefault("bench.output", cfg.Bench.Output)

	if path == "" {
		if envPath := os.Getenv("LOSSYFLOW_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lossyflow")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".lossyflow"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes empty fields and rejects values the program cannot use.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if c.Scheduler.IdleInterval < 0 {
		return fmt.Errorf("invalid scheduler.idle_interval: %s", c.Scheduler.IdleInterval)
	}
	if c.Scheduler.HistoryCapacity < 0 {
		return fmt.Errorf("invalid scheduler.history_capacity: %d", c.Scheduler.HistoryCapacity)
	}

	if c.Metrics.Enable && strings.TrimSpace(c.Metrics.Listen) == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	if c.Metrics.PollInterval <= 0 {
		c.Metrics.PollInterval = time.Second
	}

	c.Bench.Format = strings.ToLower(strings.TrimSpace(c.Bench.Format))
	switch c.Bench.Format {
	case "":
		c.Bench.Format = "json"
	case "json", "cbor":
	default:
		return fmt.Errorf("invalid bench.format: %q", c.Bench.Format)
	}
	if c.Bench.Messages < 1 {
		return fmt.Errorf("invalid bench.messages: %d", c.Bench.Messages)
	}
	if c.Bench.Capacity < 1 {
		return fmt.Errorf("invalid bench.capacity: %d", c.Bench.Capacity)
	}
	if c.Bench.Stages < 0 {
		return fmt.Errorf("invalid bench.stages: %d", c.Bench.Stages)
	}
	if c.Bench.Samples < 1 {
		return fmt.Errorf("invalid bench.samples: %d", c.Bench.Samples)
	}
	return nil
}

// SchedulerOptions turns the scheduler section into core options. Handlers
// such as the logger and metrics are supplied by the caller.
func (c SchedulerConfig) SchedulerOptions(extra ...core.SchedulerOption) []core.SchedulerOption {
	opts := []core.SchedulerOption{
		core.WithIdleInterval(c.IdleInterval),
		core.WithHistoryCapacity(c.HistoryCapacity),
	}
	if c.Name != "" {
		opts = append(opts, core.WithName(c.Name))
	}
	return append(opts, extra...)
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
