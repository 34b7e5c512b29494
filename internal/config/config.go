package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/perfmond/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultLogLevel = "info"

// Config holds the validated runtime configuration of the monitoring engine.
type Config struct {
	// Sampling cadence
	IntervalSeconds              int `mapstructure:"interval"`
	HighFrequencyIntervalMillis  int `mapstructure:"high_frequency_interval_ms"`
	StatisticsIntervalSeconds    int `mapstructure:"statistics_interval"`

	// History retention
	RetentionHours         int  `mapstructure:"retention_hours"`
	MaxDataPoints          int  `mapstructure:"max_data_points"`
	AutoCleanup            bool `mapstructure:"auto_cleanup"`
	CleanupIntervalSeconds int  `mapstructure:"cleanup_interval"`

	// Alerting
	MaxAlertsPerMinute          int  `mapstructure:"max_alerts_per_minute"`
	AlertBatching               bool `mapstructure:"alert_batching"`
	AlertEscalationDelaySeconds int  `mapstructure:"alert_escalation_delay"`

	// Custom collectors
	CollectorTimeoutMillis int `mapstructure:"collector_timeout_ms"`

	// Sample archive
	ArchiveEnabled             bool   `mapstructure:"archive"`
	ArchiveDB                  string `mapstructure:"archive_db"`
	ArchiveBatchSize           int    `mapstructure:"archive_batch_size"`
	ArchiveBatchTimeoutSeconds int    `mapstructure:"archive_batch_timeout"`

	// Daemon behavior
	PriorityTier string `mapstructure:"priority_tier"`
	LogLevel     string `mapstructure:"log_level"`
	Debug        bool   `mapstructure:"debug"`
	Verbose      bool   `mapstructure:"verbose"`
}

// Default returns the built-in configuration used when no file or flags
// override it. All intervals are positive so a zero-value config never
// reaches the scheduler.
func Default() *Config {
	return &Config{
		IntervalSeconds:             1,
		HighFrequencyIntervalMillis: 0,
		StatisticsIntervalSeconds:   10,
		RetentionHours:              24,
		MaxDataPoints:               1000,
		AutoCleanup:                 true,
		CleanupIntervalSeconds:      60,
		MaxAlertsPerMinute:          10,
		AlertBatching:               false,
		AlertEscalationDelaySeconds: 5,
		CollectorTimeoutMillis:      250,
		ArchiveEnabled:              false,
		ArchiveDB:                   "/var/lib/perfmond/samples.db",
		ArchiveBatchSize:            32,
		ArchiveBatchTimeoutSeconds:  10,
		PriorityTier:                "normal",
		LogLevel:                    DefaultLogLevel,
	}
}

func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	defaults := Default()
	v.SetDefault("interval", defaults.IntervalSeconds)
	v.SetDefault("high_frequency_interval_ms", defaults.HighFrequencyIntervalMillis)
	v.SetDefault("statistics_interval", defaults.StatisticsIntervalSeconds)
	v.SetDefault("retention_hours", defaults.RetentionHours)
	v.SetDefault("max_data_points", defaults.MaxDataPoints)
	v.SetDefault("auto_cleanup", defaults.AutoCleanup)
	v.SetDefault("cleanup_interval", defaults.CleanupIntervalSeconds)
	v.SetDefault("max_alerts_per_minute", defaults.MaxAlertsPerMinute)
	v.SetDefault("alert_batching", defaults.AlertBatching)
	v.SetDefault("alert_escalation_delay", defaults.AlertEscalationDelaySeconds)
	v.SetDefault("collector_timeout_ms", defaults.CollectorTimeoutMillis)
	v.SetDefault("archive", defaults.ArchiveEnabled)
	v.SetDefault("archive_db", defaults.ArchiveDB)
	v.SetDefault("archive_batch_size", defaults.ArchiveBatchSize)
	v.SetDefault("archive_batch_timeout", defaults.ArchiveBatchTimeoutSeconds)
	v.SetDefault("priority_tier", defaults.PriorityTier)
	v.SetDefault("log_level", defaults.LogLevel)

	flags := pflag.NewFlagSet("perfmond", pflag.ContinueOnError)
	flags.Int("interval", defaults.IntervalSeconds, "Seconds between metric samples")
	flags.Int("statistics-interval", defaults.StatisticsIntervalSeconds, "Seconds between statistics recomputation")
	flags.Int("retention-hours", defaults.RetentionHours, "Hours of history to retain per session")
	flags.Int("max-data-points", defaults.MaxDataPoints, "Maximum retained samples per session")
	flags.Int("max-alerts-per-minute", defaults.MaxAlertsPerMinute, "Alert callback rate limit")
	flags.String("log-level", defaults.LogLevel, "Log level (debug, info, warning, error)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	if err := flags.Parse(os.Args[1:]); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if configPath := os.Getenv("PERFMOND_CONFIG"); configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("perfmond")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/perfmond")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
		}
	}

	v.SetEnvPrefix("PERFMOND")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every interval and bound is usable by the scheduler.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.IntervalSeconds <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.IntervalSeconds)
	}
	if c.HighFrequencyIntervalMillis < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.HighFrequencyIntervalMillis)
	}
	if c.StatisticsIntervalSeconds <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.StatisticsIntervalSeconds)
	}
	if c.RetentionHours <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "retention_hours must be positive")
	}
	if c.MaxDataPoints <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "max_data_points must be positive")
	}
	if c.AutoCleanup && c.CleanupIntervalSeconds <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.CleanupIntervalSeconds)
	}
	if c.MaxAlertsPerMinute < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "max_alerts_per_minute cannot be negative")
	}
	if c.AlertBatching && c.AlertEscalationDelaySeconds <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.AlertEscalationDelaySeconds)
	}
	if c.CollectorTimeoutMillis <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.CollectorTimeoutMillis)
	}
	if c.ArchiveEnabled && c.ArchiveDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "archive_db required when archive is enabled")
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}
