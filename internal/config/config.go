package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxPageSize is the largest page of trade fills the backend serves.
const MaxPageSize = 100

// Config holds all configuration for the application.
type Config struct {
	Backend  Backend  `mapstructure:"backend"`
	History  History  `mapstructure:"history"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Tracing  Tracing  `mapstructure:"tracing"`
}

// Backend holds the configuration for the trading backend REST API.
type Backend struct {
	BaseURL        string  `mapstructure:"base_url"`
	Token          string  `mapstructure:"token"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (b Backend) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// History holds the configuration for trade history retrieval.
type History struct {
	LookbackDays int  `mapstructure:"lookback_days"`
	PageSize     int  `mapstructure:"page_size"`
	MaxPages     int  `mapstructure:"max_pages"`
	StrictCutoff bool `mapstructure:"strict_cutoff"`
	// QuoteAssets decides whether a fee coin is quote or base denominated.
	QuoteAssets     []string `mapstructure:"quote_assets"`
	RefreshInterval int      `mapstructure:"refresh_interval"`
}

// Server holds the configuration for the HTTP servers.
type Server struct {
	Port       int `mapstructure:"port"`
	StatusPort int `mapstructure:"status_port"`
}

// Database holds the configuration for the fill cache.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Tracing toggles the stdout span exporter.
type Tracing struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory is loaded first, so secrets such as
// BACKEND_TOKEN can stay out of the YAML.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.rate_limit", 10) // requests per second
	v.SetDefault("backend.rate_limit_burst", 5)
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("backend.timeout_seconds", 15)

	v.SetDefault("history.lookback_days", 30)
	v.SetDefault("history.page_size", 100)
	v.SetDefault("history.max_pages", 0) // unlimited
	v.SetDefault("history.strict_cutoff", true)
	v.SetDefault("history.quote_assets", []string{"USDT", "USDC", "BUSD", "FDUSD", "BTC", "ETH"})
	v.SetDefault("history.refresh_interval", 300)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.status_port", 8081)

	v.SetDefault("database.dsn", "pnl.db")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "bitget-pnl-tracker")
}

// Validate reports settings that would make the tracker misbehave.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Backend.BaseURL) == "":
		return errors.New("backend.base_url is required")
	case c.History.LookbackDays <= 0:
		return fmt.Errorf("history.lookback_days must be positive, got %d", c.History.LookbackDays)
	case c.History.PageSize <= 0 || c.History.PageSize > MaxPageSize:
		return fmt.Errorf("history.page_size must be between 1 and %d, got %d", MaxPageSize, c.History.PageSize)
	case c.History.MaxPages < 0:
		return fmt.Errorf("history.max_pages must not be negative, got %d", c.History.MaxPages)
	case c.Backend.RateLimit <= 0 || c.Backend.RateLimitBurst <= 0:
		return errors.New("backend.rate_limit and backend.rate_limit_burst must be positive")
	case len(c.History.QuoteAssets) == 0:
		return errors.New("history.quote_assets must list at least one asset")
	}
	return nil
}
