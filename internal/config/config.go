// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Sonar      SonarConfig
	Sync       SyncConfig
	Trend      TrendConfig
	Worker     WorkerConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Encryption EncryptionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// Addr returns the server listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// SonarConfig holds the upstream client defaults. The spacing, concurrency,
// cache and retry numbers mirror the behavior the upstream server tolerates.
type SonarConfig struct {
	RequestTimeout time.Duration // per-request, fatal when exceeded
	RetryCount     int           // attempts after the first failure
	RetryAfterCap  time.Duration // cap for server-provided Retry-After
	MaxConcurrent  int64         // in-flight request bound
	MinInterval    time.Duration // spacing between dispatches
	CacheSize      int           // LRU capacity
	CacheTTL       time.Duration
	PageSize       int // pagination page size
	MaxPages       int // pagination hard cap
}

// SyncConfig holds synchronization engine configuration.
type SyncConfig struct {
	// Coalesce attaches a second trigger to the in-flight run instead of
	// rejecting it.
	Coalesce bool
}

// TrendConfig holds trend storage configuration.
type TrendConfig struct {
	Dir string
}

// WorkerConfig holds background worker configuration.
type WorkerConfig struct {
	Enabled     bool
	Concurrency int
}

// RateLimitConfig holds local HTTP API rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// EncryptionConfig holds the credentials-at-rest key.
type EncryptionConfig struct {
	// Key is a 32-byte key, base64 or raw. Empty disables encryption
	// (development only).
	Key string
}

// Load builds the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "sonartrack"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "sonartrack"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "sonartrack"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:   getEnvInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Sonar: SonarConfig{
			RequestTimeout: getEnvDuration("SONAR_REQUEST_TIMEOUT", 30*time.Second),
			RetryCount:     getEnvInt("SONAR_RETRY_COUNT", 3),
			RetryAfterCap:  getEnvDuration("SONAR_RETRY_AFTER_CAP", 10*time.Second),
			MaxConcurrent:  int64(getEnvInt("SONAR_MAX_CONCURRENT", 5)),
			MinInterval:    getEnvDuration("SONAR_MIN_INTERVAL", 100*time.Millisecond),
			CacheSize:      getEnvInt("SONAR_CACHE_SIZE", 1000),
			CacheTTL:       getEnvDuration("SONAR_CACHE_TTL", 5*time.Minute),
			PageSize:       getEnvInt("SONAR_PAGE_SIZE", 500),
			MaxPages:       getEnvInt("SONAR_MAX_PAGES", 20),
		},
		Sync: SyncConfig{
			Coalesce: getEnvBool("SYNC_COALESCE", false),
		},
		Trend: TrendConfig{
			Dir: getEnv("TREND_DIR", "./data/trends"),
		},
		Worker: WorkerConfig{
			Enabled:     getEnvBool("WORKER_ENABLED", true),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_RPS", 50),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 100),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 86400),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Sonar.MaxConcurrent < 1 {
		return fmt.Errorf("config: sonar max concurrent must be positive")
	}
	if c.Sonar.PageSize < 1 {
		return fmt.Errorf("config: sonar page size must be positive")
	}
	if c.Sonar.MaxPages < 1 {
		return fmt.Errorf("config: sonar max pages must be positive")
	}
	if c.Sonar.RetryCount < 0 {
		return fmt.Errorf("config: sonar retry count must not be negative")
	}
	if c.Sonar.CacheSize < 1 {
		return fmt.Errorf("config: sonar cache size must be positive")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker concurrency must be positive")
	}
	if c.IsProduction() && c.Encryption.Key == "" {
		return fmt.Errorf("config: ENCRYPTION_KEY is required in production")
	}
	return nil
}

// IsProduction reports whether the application runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
