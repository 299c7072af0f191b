package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	API     APIConfig
	Catalog CatalogConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// APIConfig holds catalog API transport configuration
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	PhoneLimit        int           `mapstructure:"phone_limit"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables
	Burst             int           `mapstructure:"burst"`
}

// CatalogConfig holds data coordinator configuration
type CatalogConfig struct {
	UseRemote            bool          `mapstructure:"use_remote"`
	FreshnessWindow      time.Duration `mapstructure:"freshness_window"`
	RefreshInterval      time.Duration `mapstructure:"refresh_interval"`
	SentimentConcurrency int           `mapstructure:"sentiment_concurrency"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/sentimentscope/")

	// SENTIMENTSCOPE_API_BASE_URL -> api.base_url
	v.SetEnvPrefix("SENTIMENTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment. Variables that are
// already set win, and a missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Catalog API defaults
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "8s")
	v.SetDefault("api.probe_timeout", "3s")
	v.SetDefault("api.phone_limit", 200)
	v.SetDefault("api.requests_per_second", 0)
	v.SetDefault("api.burst", 10)

	// Coordinator defaults
	v.SetDefault("catalog.use_remote", true)
	v.SetDefault("catalog.freshness_window", "5m")
	v.SetDefault("catalog.refresh_interval", "5m")
	v.SetDefault("catalog.sentiment_concurrency", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// validate validates the configuration
func validate(config *Config) error {
	u, err := url.Parse(config.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base URL must be an absolute http(s) URL, got: %q", config.API.BaseURL)
	}

	if config.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got: %s", config.API.Timeout)
	}
	if config.API.ProbeTimeout <= 0 {
		return fmt.Errorf("api probe timeout must be positive, got: %s", config.API.ProbeTimeout)
	}
	if config.API.PhoneLimit <= 0 {
		return fmt.Errorf("api phone limit must be positive, got: %d", config.API.PhoneLimit)
	}
	if config.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api requests per second must not be negative, got: %g", config.API.RequestsPerSecond)
	}
	if config.API.RequestsPerSecond > 0 && config.API.Burst < 1 {
		return fmt.Errorf("api burst must be at least 1 when rate limiting, got: %d", config.API.Burst)
	}

	if config.Catalog.FreshnessWindow <= 0 {
		return fmt.Errorf("catalog freshness window must be positive, got: %s", config.Catalog.FreshnessWindow)
	}
	if config.Catalog.RefreshInterval <= 0 {
		return fmt.Errorf("catalog refresh interval must be positive, got: %s", config.Catalog.RefreshInterval)
	}
	if config.Catalog.SentimentConcurrency < 1 {
		return fmt.Errorf("catalog sentiment concurrency must be at least 1, got: %d", config.Catalog.SentimentConcurrency)
	}

	if _, err := zapcore.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	return nil
}
