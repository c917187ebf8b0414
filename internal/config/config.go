package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Threshold comparison modes applied to backend outlier results
const (
	ComparisonGreater      = "gt"
	ComparisonGreaterEqual = "gte"
)

// Config is the application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Backend     BackendConfig   `mapstructure:"backend"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds the query log database settings. The service runs
// without a database when Enabled is false.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// BackendConfig points at the analysis backend that owns the readings
type BackendConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// AnalyticsConfig tunes the dashboard and chat behaviour
type AnalyticsConfig struct {
	TopN                int    `mapstructure:"top_n"`
	SummaryLimit        int    `mapstructure:"summary_limit"`
	ThresholdComparison string `mapstructure:"threshold_comparison"`
	CalendarMonthEnd    bool   `mapstructure:"calendar_month_end"`
}

// LoadConfig reads .env, config.yaml and the environment, in increasing
// order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("backend.base_url", "BACKEND_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Analytics.ThresholdComparison = strings.ToLower(strings.TrimSpace(cfg.Analytics.ThresholdComparison))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "energy_insights")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "60s")
	v.SetDefault("backend.max_retries", 2)

	v.SetDefault("analytics.top_n", 10)
	v.SetDefault("analytics.summary_limit", 5)
	v.SetDefault("analytics.threshold_comparison", ComparisonGreater)
	v.SetDefault("analytics.calendar_month_end", false)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend max retries cannot be negative, got %d", c.Backend.MaxRetries)
	}

	if c.Analytics.TopN <= 0 {
		return fmt.Errorf("analytics top_n must be positive, got %d", c.Analytics.TopN)
	}
	if c.Analytics.SummaryLimit <= 0 {
		return fmt.Errorf("analytics summary_limit must be positive, got %d", c.Analytics.SummaryLimit)
	}
	switch c.Analytics.ThresholdComparison {
	case ComparisonGreater, ComparisonGreaterEqual:
	default:
		return fmt.Errorf("invalid threshold comparison: %q (want %q or %q)",
			c.Analytics.ThresholdComparison, ComparisonGreater, ComparisonGreaterEqual)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("database host and name are required when the database is enabled")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
		}
	}

	return nil
}
