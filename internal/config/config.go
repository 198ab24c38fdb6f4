package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Platform API
	PlatformAPIURL     string
	PlatformAPITimeout time.Duration
	PlatformAPIRPS     float64
	PlatformAPIBurst   int

	// Redis, optional
	RedisURL string

	// NATS, optional
	NATSURL string

	// JWT
	JWTSecret string

	// CORS, empty allows all origins
	CORSAllowedOrigins []string

	// Inventory sessions
	SessionTTL      time.Duration
	SaveConcurrency int
	SweepInterval   time.Duration

	// Inbound rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Pagination
	DefaultPageSize int
	MaxPageSize     int
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	defaultPageSize, _ := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "20"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "100"))

	return &Config{
		// Server
		Port:        getEnv("PORT", "8095"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      dbPort,
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "merchant_panel_db"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		// Platform API
		PlatformAPIURL:     getEnv("PLATFORM_API_URL", "http://platform-api:8080/api/v1"),
		PlatformAPITimeout: time.Duration(getEnvInt("PLATFORM_API_TIMEOUT_SECONDS", 10)) * time.Second,
		PlatformAPIRPS:     getEnvFloat("PLATFORM_API_RPS", 20),
		PlatformAPIBurst:   getEnvInt("PLATFORM_API_BURST", 10),

		RedisURL: getEnv("REDIS_URL", ""),
		NATSURL:  getEnv("NATS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		// Inventory sessions
		SessionTTL:      time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		SaveConcurrency: getEnvInt("SAVE_CONCURRENCY", 8),
		SweepInterval:   time.Duration(getEnvInt("SESSION_SWEEP_INTERVAL_SECONDS", 300)) * time.Second,

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),

		// Pagination
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns DATABASE_URL when set, otherwise a DSN built from the
// individual DB_* settings
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.IsProduction() {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

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

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
