package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	dir := t.TempDir()
	if yaml != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 10, cfg.Analytics.TopN)
	assert.Equal(t, 5, cfg.Analytics.SummaryLimit)
	assert.Equal(t, ComparisonGreater, cfg.Analytics.ThresholdComparison)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	yaml := `
server:
  port: 9090
logging:
  level: DEBUG
backend:
  base_url: http://analysis:8000/
  timeout: 5s
analytics:
  threshold_comparison: GTE
  calendar_month_end: true
`
	t.Setenv("ANALYTICS_TOP_N", "3")
	t.Setenv("BACKEND_URL", "http://override:9000")

	cfg, err := load(newTestViper(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "http://override:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 3, cfg.Analytics.TopN)
	assert.Equal(t, ComparisonGreaterEqual, cfg.Analytics.ThresholdComparison)
	assert.True(t, cfg.Analytics.CalendarMonthEnd)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := load(newTestViper(t, ""))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"missing backend", func(c *Config) { c.Backend.BaseURL = "" }},
		{"zero backend timeout", func(c *Config) { c.Backend.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Backend.MaxRetries = -1 }},
		{"zero top n", func(c *Config) { c.Analytics.TopN = 0 }},
		{"zero summary limit", func(c *Config) { c.Analytics.SummaryLimit = 0 }},
		{"unknown comparison", func(c *Config) { c.Analytics.ThresholdComparison = "lt" }},
		{"database without name", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Database = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
