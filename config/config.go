package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	LogLevel string
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Detector DetectorConfig
	Signup   SignupConfig
}

type ServerConfig struct {
	Port               string
	BaseURL            string   // prefix for public upload URLs, empty for relative URLs
	AllowedOrigins     []string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL          string // takes precedence over the discrete fields
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RedisConfig is optional; with an empty Addr revoked tokens are kept in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	UploadDir string
}

type DetectorConfig struct {
	Kind               string // "random" or "model"
	ModelURL           string
	Timeout            time.Duration
	DiseaseProbability float64
}

// SignupConfig controls the retry policy around account creation.
type SignupConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

const devSecret = "dev-secret-change-me"

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var err error
	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			BaseURL:        strings.TrimRight(getEnv("BASE_URL", ""), "/"),
			AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "maizeai"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		},
		Detector: DetectorConfig{
			Kind:     strings.ToLower(getEnv("DETECTOR", "random")),
			ModelURL: getEnv("MODEL_URL", ""),
		},
	}

	if cfg.Server.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenTTL, err = getEnvDuration("TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Detector.Timeout, err = getEnvDuration("MODEL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Detector.DiseaseProbability, err = getEnvFloat("DETECTOR_DISEASE_PROBABILITY", 0.7); err != nil {
		return nil, err
	}
	if cfg.Signup.MaxAttempts, err = getEnvInt("SIGNUP_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Signup.Backoff, err = getEnvDuration("SIGNUP_BACKOFF", time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
		}
		c.Auth.JWTSecret = devSecret
	}
	switch c.Detector.Kind {
	case "random":
	case "model":
		if c.Detector.ModelURL == "" {
			return fmt.Errorf("MODEL_URL is required when DETECTOR=model")
		}
	default:
		return fmt.Errorf("unknown DETECTOR %q", c.Detector.Kind)
	}
	if c.Detector.DiseaseProbability < 0 || c.Detector.DiseaseProbability > 1 {
		return fmt.Errorf("DETECTOR_DISEASE_PROBABILITY must be within [0, 1]")
	}
	if c.Signup.MaxAttempts < 1 {
		return fmt.Errorf("SIGNUP_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	db := fmt.Sprintf("%s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Name)
	if c.Database.URL != "" {
		db = "DATABASE_URL"
	}
	return fmt.Sprintf("Config{Env: %s, Port: %s, DB: %s, Redis: %q, Detector: %s, Auth: *** (masked) ***}",
		c.Env, c.Server.Port, db, c.Redis.Addr, c.Detector.Kind)
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return f, nil
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
