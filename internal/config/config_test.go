package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/perfmond/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setArgs replaces os.Args for the duration of the test so the go test
// flags do not leak into the loader.
func setArgs(t *testing.T, args ...string) {
	t.Helper()

	old := os.Args
	os.Args = append([]string{"perfmond"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "perfmond.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.IntervalSeconds)
	assert.Equal(t, 24, cfg.RetentionHours)
	assert.Equal(t, 1000, cfg.MaxDataPoints)
	assert.True(t, cfg.AutoCleanup)
	assert.False(t, cfg.ArchiveEnabled)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	setArgs(t)
	t.Setenv("PERFMOND_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Default().IntervalSeconds, cfg.IntervalSeconds)
	assert.Equal(t, config.Default().MaxAlertsPerMinute, cfg.MaxAlertsPerMinute)
}

func TestLoadFromConfigFile(t *testing.T) {
	setArgs(t)
	path := writeConfig(t, `
interval = 5
retention_hours = 48
max_data_points = 250
max_alerts_per_minute = 3
alert_batching = true
alert_escalation_delay = 2
log_level = "debug"
`)
	t.Setenv("PERFMOND_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.IntervalSeconds)
	assert.Equal(t, 48, cfg.RetentionHours)
	assert.Equal(t, 250, cfg.MaxDataPoints)
	assert.Equal(t, 3, cfg.MaxAlertsPerMinute)
	assert.True(t, cfg.AlertBatching)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	setArgs(t, "--interval", "7", "--max-data-points", "50")
	path := writeConfig(t, "interval = 5\nmax_data_points = 250\n")
	t.Setenv("PERFMOND_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.IntervalSeconds)
	assert.Equal(t, 50, cfg.MaxDataPoints)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setArgs(t)
	path := writeConfig(t, "interval = 0\n")
	t.Setenv("PERFMOND_CONFIG", path)

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero interval", func(c *config.Config) { c.IntervalSeconds = 0 }},
		{"negative high frequency interval", func(c *config.Config) { c.HighFrequencyIntervalMillis = -1 }},
		{"zero statistics interval", func(c *config.Config) { c.StatisticsIntervalSeconds = 0 }},
		{"zero retention", func(c *config.Config) { c.RetentionHours = 0 }},
		{"zero max data points", func(c *config.Config) { c.MaxDataPoints = 0 }},
		{"cleanup without interval", func(c *config.Config) { c.CleanupIntervalSeconds = 0 }},
		{"negative alert rate", func(c *config.Config) { c.MaxAlertsPerMinute = -1 }},
		{"batching without delay", func(c *config.Config) {
			c.AlertBatching = true
			c.AlertEscalationDelaySeconds = 0
		}},
		{"zero collector timeout", func(c *config.Config) { c.CollectorTimeoutMillis = 0 }},
		{"archive without path", func(c *config.Config) {
			c.ArchiveEnabled = true
			c.ArchiveDB = ""
		}},
		{"bad log level", func(c *config.Config) { c.LogLevel = "chatty" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateZeroAlertRateAllowed(t *testing.T) {
	cfg := config.Default()
	cfg.MaxAlertsPerMinute = 0

	assert.NoError(t, cfg.Validate())
}
