package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gatherhub/eventdir/internal/models"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Pipeline  PipelineConfig
	Platforms PlatformsConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Admin     AdminConfig
	Groups    []GroupRef
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	URL string
}

// PipelineConfig controls the aggregation fan-out and schedule.
type PipelineConfig struct {
	SyncInterval  time.Duration
	WorkerCount   int
	FetchTimeout  time.Duration
	RateLimit     float64
	RetryAttempts int
	RetryDelay    time.Duration
	PageSize      int
	PageCap       int
}

// PlatformsConfig carries per-provider endpoints and credentials.
type PlatformsConfig struct {
	MeetupBaseURL     string
	MeetupToken       string
	EventbriteBaseURL string
	EventbriteToken   string
	LumaBaseURL       string
	LumaToken         string
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type AdminConfig struct {
	// AdminSecret may be a plaintext shared secret or a bcrypt hash
	// (prefixed "$2"); the middleware handles both.
	AdminSecret string
}

// GroupRef is one tracked group: which platform it lives on and the
// platform-specific identifier used to fetch it.
type GroupRef struct {
	Platform   models.PlatformKind
	Identifier string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	groups, err := parseGroups(getEnv("GROUPS", ""))
	if err != nil {
		return nil, fmt.Errorf("parse GROUPS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Pipeline: PipelineConfig{
			SyncInterval:  getEnvDuration("PIPELINE_SYNC_INTERVAL", 1*time.Hour),
			WorkerCount:   getEnvInt("PIPELINE_WORKER_COUNT", 4),
			FetchTimeout:  getEnvDuration("PIPELINE_FETCH_TIMEOUT", 30*time.Second),
			RateLimit:     getEnvFloat("PIPELINE_RATE_LIMIT", 5.0),
			RetryAttempts: getEnvInt("PIPELINE_RETRY_ATTEMPTS", 1),
			RetryDelay:    getEnvDuration("PIPELINE_RETRY_DELAY", 2*time.Second),
			PageSize:      getEnvInt("PIPELINE_PAGE_SIZE", 50),
			PageCap:       getEnvInt("PIPELINE_PAGE_CAP", 10),
		},
		Platforms: PlatformsConfig{
			MeetupBaseURL:     getEnv("MEETUP_BASE_URL", "https://api.meetup.com"),
			MeetupToken:       getEnv("MEETUP_TOKEN", ""),
			EventbriteBaseURL: getEnv("EVENTBRITE_BASE_URL", "https://www.eventbriteapi.com/v3"),
			EventbriteToken:   getEnv("EVENTBRITE_TOKEN", ""),
			LumaBaseURL:       getEnv("LUMA_BASE_URL", "https://api.lu.ma/public/v1"),
			LumaToken:         getEnv("LUMA_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Admin: AdminConfig{
			AdminSecret: getEnv("ADMIN_SECRET", ""),
		},
		Groups: groups,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// parseGroups parses the GROUPS env var, a comma-separated list of
// "platform:identifier" entries, e.g. "meetup:gophers-sf,eventbrite:12345".
func parseGroups(raw string) ([]GroupRef, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var groups []GroupRef
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid group entry %q, want platform:identifier", entry)
		}
		kind := models.PlatformKind(strings.ToLower(parts[0]))
		switch kind {
		case models.PlatformMeetup, models.PlatformEventbrite, models.PlatformLuma:
		default:
			return nil, fmt.Errorf("unknown platform %q in group entry %q", parts[0], entry)
		}
		groups = append(groups, GroupRef{Platform: kind, Identifier: parts[1]})
	}
	return groups, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("pipeline worker count must be at least 1")
	}
	if c.Pipeline.SyncInterval < time.Second {
		return fmt.Errorf("pipeline sync interval must be at least 1s")
	}
	if c.Pipeline.PageCap < 1 {
		return fmt.Errorf("pipeline page cap must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
