package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the call-screener service
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Screening  ScreeningConfig  `mapstructure:"screening"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Contacts   ContactsConfig   `mapstructure:"contacts"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	History    HistoryConfig    `mapstructure:"history"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig contains Redis configuration for the reputation result cache
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	ResultTTL    time.Duration `mapstructure:"result_ttl"`
}

// ScreeningConfig controls number normalization and rule evaluation
type ScreeningConfig struct {
	// DefaultRegion is the ISO 3166-1 alpha-2 region that numbers without
	// a country prefix are parsed against.
	DefaultRegion string `mapstructure:"default_region"`
}

// ReputationConfig contains the generative-language reputation service settings
type ReputationConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	FallbackAPIKey string        `mapstructure:"fallback_api_key"`
	Model          string        `mapstructure:"model"`
	Prompt         string        `mapstructure:"prompt"`
	BaseURL        string        `mapstructure:"base_url"`
	CacheEnabled   bool          `mapstructure:"cache_enabled"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryUnit      time.Duration `mapstructure:"retry_unit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ContactsConfig contains the external contact-lookup service settings
type ContactsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AnalysisConfig controls the background reputation enrichment workers
type AnalysisConfig struct {
	Workers    int           `mapstructure:"workers"`
	QueueSize  int           `mapstructure:"queue_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// HistoryConfig controls the decision history log
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// MetricsConfig contains monitoring and metrics configuration
type MetricsConfig struct {
	Enabled          bool      `mapstructure:"enabled"`
	Path             string    `mapstructure:"path"`
	HistogramBuckets []float64 `mapstructure:"histogram_buckets"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// DefaultPrompt is used when no reputation prompt is configured. The
// {number} placeholder is interpolated before each request.
const DefaultPrompt = "Investigate the reputation of the phone number {number}. " +
	"Search for the number as an exact, quoted match and consult multiple sources. " +
	"Start your answer with either [SPAM] or [NO DATA], then summarize the " +
	"reported reputation in one line."

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Environment variable binding
	viper.SetEnvPrefix("CALL_SCREENER")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; continue with environment variables and defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 3010)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "5s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "call_screener")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.ssl_mode", "prefer")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "1h")
	viper.SetDefault("database.conn_max_idle_time", "10m")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.database", 1)
	viper.SetDefault("redis.pool_size", 20)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "2s")
	viper.SetDefault("redis.write_timeout", "2s")
	viper.SetDefault("redis.idle_timeout", "5m")
	viper.SetDefault("redis.result_ttl", "72h")

	// Screening defaults
	viper.SetDefault("screening.default_region", "JP")

	// Reputation defaults
	viper.SetDefault("reputation.enabled", true)
	viper.SetDefault("reputation.model", "gemini-2.5-flash-lite")
	viper.SetDefault("reputation.prompt", DefaultPrompt)
	viper.SetDefault("reputation.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("reputation.cache_enabled", true)
	viper.SetDefault("reputation.max_attempts", 4)
	viper.SetDefault("reputation.retry_unit", "1s")
	viper.SetDefault("reputation.request_timeout", "30s")

	// Contacts defaults
	viper.SetDefault("contacts.request_timeout", "2s")

	// Analysis defaults
	viper.SetDefault("analysis.workers", 2)
	viper.SetDefault("analysis.queue_size", 100)
	viper.SetDefault("analysis.job_timeout", "2m")

	// History defaults
	viper.SetDefault("history.max_entries", 100)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.histogram_buckets", []float64{
		0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
	})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.development", false)
	viper.SetDefault("logging.encoding", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max_connections must be positive")
	}

	if config.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool_size must be positive")
	}

	if config.Screening.DefaultRegion == "" {
		return fmt.Errorf("screening default_region must be set")
	}

	if config.Reputation.MaxAttempts < 1 {
		return fmt.Errorf("reputation max_attempts must be at least 1")
	}

	if config.Analysis.Workers < 1 {
		return fmt.Errorf("analysis workers must be at least 1")
	}

	if config.History.MaxEntries < 1 {
		return fmt.Errorf("history max_entries must be at least 1")
	}

	return nil
}

// NewConfig creates a new configuration instance
func NewConfig() (*Config, error) {
	return Load()
}
