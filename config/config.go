// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
}

type ServerConfig struct {
	Port           string
	AppEnv         string
	LogLevel       string
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
}

type DatabaseConfig struct {
	Driver string // sqlite, postgres or memory
	Path   string // sqlite file
	URL    string // postgres DSN
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Queue    string
}

type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

type LedgerConfig struct {
	Timezone *time.Location
}

// Load reads a .env file if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	tzName := getEnv("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE %q: %w", tzName, err)
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", "sqlite"))
	switch driver {
	case "sqlite", "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER %q: want sqlite, postgres or memory", driver)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AppEnv:         getEnv("APP_ENV", "production"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 20),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver: driver,
			Path:   getEnv("DB_PATH", "./bottles.db"),
			URL:    os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("NOTIFY_ENABLED", true),
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			Queue:    getEnv("NOTIFY_QUEUE", "bottles:notifications"),
		},
		Auth: AuthConfig{
			Secret:        strings.TrimSpace(os.Getenv("AUTH_SECRET")),
			TokenTTL:      getEnvDuration("TOKEN_TTL", 12*time.Hour),
			AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Ledger: LedgerConfig{Timezone: loc},
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", strings.TrimPrefix(c.Server.Port, ":"))
}

func (c Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func getEnvSlice(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
