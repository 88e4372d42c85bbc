package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration for the API server and the
// validation worker.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Geocoding GeocodingConfig
	Worker    WorkerConfig
	Alerts    AlertConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// GeocodingConfig holds external geocoding provider configuration.
type GeocodingConfig struct {
	APIKey      string
	Region      string
	CallDelay   time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// WorkerConfig holds validation worker tuning.
type WorkerConfig struct {
	BatchSize               int
	PollInterval            time.Duration
	HighConfidenceThreshold int
	StaleTimeout            time.Duration
	IdleTimeout             time.Duration
	StatsEvery              int
}

// AlertConfig holds outbound notification configuration. URLs are shoutrrr
// service URLs (smtp://..., slack://..., etc.).
type AlertConfig struct {
	Enabled bool
	URLs    []string
}

// CORSConfig holds CORS configuration for the ops API.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "cleo")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("GEOCODING_REGION", "CA")
	v.SetDefault("GEOCODING_CALL_DELAY_MS", 200)
	v.SetDefault("GEOCODING_MAX_ATTEMPTS", 3)
	v.SetDefault("GEOCODING_BACKOFF_MS", 1500)
	v.SetDefault("WORKER_BATCH_SIZE", 100)
	v.SetDefault("WORKER_POLL_INTERVAL_SEC", 30)
	v.SetDefault("WORKER_CONFIDENCE_THRESHOLD", 90)
	v.SetDefault("WORKER_STALE_TIMEOUT_MIN", 5)
	v.SetDefault("WORKER_IDLE_TIMEOUT_MIN", 60)
	v.SetDefault("WORKER_STATS_EVERY", 100)
	v.SetDefault("ALERTS_ENABLED", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Geocoding: GeocodingConfig{
			APIKey:      v.GetString("GEOCODING_API_KEY"),
			Region:      v.GetString("GEOCODING_REGION"),
			CallDelay:   time.Duration(v.GetInt("GEOCODING_CALL_DELAY_MS")) * time.Millisecond,
			MaxAttempts: v.GetInt("GEOCODING_MAX_ATTEMPTS"),
			Backoff:     time.Duration(v.GetInt("GEOCODING_BACKOFF_MS")) * time.Millisecond,
		},
		Worker: WorkerConfig{
			BatchSize:               v.GetInt("WORKER_BATCH_SIZE"),
			PollInterval:            time.Duration(v.GetInt("WORKER_POLL_INTERVAL_SEC")) * time.Second,
			HighConfidenceThreshold: v.GetInt("WORKER_CONFIDENCE_THRESHOLD"),
			StaleTimeout:            time.Duration(v.GetInt("WORKER_STALE_TIMEOUT_MIN")) * time.Minute,
			IdleTimeout:             time.Duration(v.GetInt("WORKER_IDLE_TIMEOUT_MIN")) * time.Minute,
			StatsEvery:              v.GetInt("WORKER_STATS_EVERY"),
		},
		Alerts: AlertConfig{
			Enabled: v.GetBool("ALERTS_ENABLED"),
			URLs:    splitList(v.GetString("ALERT_URLS")),
		},
		CORS: CORSConfig{
			Origins: splitList(v.GetString("CORS_ORIGINS")),
		},
	}

	// Missing required configuration fails fast, before any poll loop or
	// listener starts.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if c.Geocoding.MaxAttempts < 1 {
		return fmt.Errorf("GEOCODING_MAX_ATTEMPTS must be at least 1")
	}

	if c.Worker.BatchSize < 1 {
		return fmt.Errorf("WORKER_BATCH_SIZE must be at least 1")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL_SEC must be positive")
	}
	if c.Worker.HighConfidenceThreshold < 0 || c.Worker.HighConfidenceThreshold > 100 {
		return fmt.Errorf("WORKER_CONFIDENCE_THRESHOLD must be between 0 and 100")
	}
	if c.Worker.StatsEvery < 1 {
		return fmt.Errorf("WORKER_STATS_EVERY must be at least 1")
	}

	if c.Alerts.Enabled && len(c.Alerts.URLs) == 0 {
		return fmt.Errorf("ALERT_URLS is required when ALERTS_ENABLED is true")
	}

	return nil
}

// splitList splits a comma-separated string into trimmed, non-empty parts.
func splitList(raw string) []string {
	if raw == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
