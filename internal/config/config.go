package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	CLI       CLIConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

type DatabaseConfig struct {
	URL string
}

// AuthConfig holds the HS256 secret used to sign and verify operator tokens.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RedisConfig configures the catalog cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RabbitMQConfig configures domain event publishing. An empty URL disables events.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// SchedulerConfig holds cron expressions for background jobs.
type SchedulerConfig struct {
	LowStockCron string
}

type LogConfig struct {
	Level string
	Env   string
}

// CLIConfig holds settings only the one-shot CLI reads.
type CLIConfig struct {
	Operator string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance. Validation is left to the caller because the
// binaries need different subsets.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	cacheTTL, err := getDurationWithDefault("CATALOG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := getDurationWithDefault("JWT_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	redisDB, err := getIntWithDefault("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getenvWithDefault("APP_PORT", "8080"),
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  tokenTTL,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			TTL:      cacheTTL,
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getenvWithDefault("RABBITMQ_EXCHANGE", "bikeshop"),
		},
		Scheduler: SchedulerConfig{
			LowStockCron: getenvWithDefault("LOW_STOCK_CRON", "*/30 * * * *"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
			Env:   getenvWithDefault("APP_ENV", "development"),
		},
		CLI: CLIConfig{
			Operator: getenvWithDefault("POS_OPERATOR", "admin"),
		},
	}
	return cfg, nil
}

// Validate ensures the fields every binary needs are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must be provided")
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return errors.New("CATALOG_CACHE_TTL must be positive")
	}
	if c.RabbitMQ.URL != "" && c.RabbitMQ.Exchange == "" {
		return errors.New("RABBITMQ_EXCHANGE must not be empty")
	}
	return nil
}

// ValidateServer additionally requires the settings of the HTTP server.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	if c.Scheduler.LowStockCron == "" {
		return errors.New("LOW_STOCK_CRON must be provided")
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func getIntWithDefault(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return n, nil
}
