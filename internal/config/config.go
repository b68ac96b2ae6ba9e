package config

import (
	"errors"
	"io/fs"
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
	Session  SessionConfig
	API      APIConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	RateLimit   RateLimitConfig
}

// DatabaseConfig backs the offline demo registry.
type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type SessionConfig struct {
	// Driver is "memory" or "redis".
	Driver     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

type APIConfig struct {
	BaseURL         string
	Timeout         time.Duration
	ScheduleTimeout time.Duration
	ScheduleRetries int
}

type AuthConfig struct {
	// DemoEnabled turns on the offline registry used when the API is
	// unreachable. It is not a trust boundary.
	DemoEnabled bool
	// AccessDeniedRecovery keeps the speculative dashboard redirect when the
	// API answers "access denied" at login.
	AccessDeniedRecovery bool
	OTPTTL               time.Duration
	DemoTokenTTL         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	Enabled bool
	// Limit caps submissions per client IP.
	Limit int
	// IdentifierLimit caps submissions naming the same identifier or email.
	IdentifierLimit int
	Window          time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	environment := getEnv("ENVIRONMENT", "development")

	sessionTTL := getInt("SESSION_TTL_MINUTES", 720)

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: environment,
			RateLimit: RateLimitConfig{
				Enabled:         getBool("RATE_LIMIT_ENABLED", true),
				Limit:           getInt("RATE_LIMIT", 100),
				IdentifierLimit: getInt("RATE_LIMIT_IDENTIFIER", 5),
				Window:          time.Duration(getInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
			},
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "medsync-demo.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "medsync"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Driver:     strings.ToLower(getEnv("SESSION_DRIVER", "memory")),
			CookieName: getEnv("SESSION_COOKIE", "medsync_session"),
			TTL:        time.Duration(sessionTTL) * time.Minute,
			Secure:     getBool("SESSION_COOKIE_SECURE", environment == "production"),
		},
		API: APIConfig{
			BaseURL:         strings.TrimRight(getEnv("API_BASE", "http://localhost:5000"), "/"),
			Timeout:         time.Duration(getInt("API_TIMEOUT_SECONDS", 30)) * time.Second,
			ScheduleTimeout: time.Duration(getInt("SCHEDULE_TIMEOUT_SECONDS", 12)) * time.Second,
			ScheduleRetries: getInt("SCHEDULE_RETRIES", 1),
		},
		Auth: AuthConfig{
			DemoEnabled:          getBool("DEMO_AUTH_ENABLED", environment == "development"),
			AccessDeniedRecovery: getBool("ACCESS_DENIED_RECOVERY", false),
			OTPTTL:               time.Duration(getInt("OTP_TTL_SECONDS", 120)) * time.Second,
			DemoTokenTTL:         time.Duration(sessionTTL) * time.Minute,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getInt falls back to defaultValue when the variable is unset, empty or not
// a number.
func getInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}
