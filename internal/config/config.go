package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	RCAPIURL   string
	RCAPIToken string

	GeminiAPIKey string
	GeminiModel  string
	OracleRPS    float64

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	OracleCacheTTL time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	ReviewEmail  string

	ValuationConfigPath   string
	ValuationPreset       string
	SnapshotRetentionDays int
	PurgeSchedule         string
	BatchConcurrency      int
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DBConn:              getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=valuation sslmode=disable"),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		RCAPIURL:            getEnv("RC_API_URL", "https://kyc-api.surepass.io/api/v1/rc/rc-v2"),
		RCAPIToken:          getEnv("RC_API_TOKEN", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		SMTPHost:            getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:            getEnv("SMTP_PORT", "587"),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		SenderEmail:         getEnv("SENDER_EMAIL", "valuations@example.com"),
		ReviewEmail:         getEnv("REVIEW_EMAIL", ""),
		ValuationConfigPath: getEnv("VALUATION_CONFIG", ""),
		ValuationPreset:     getEnv("VALUATION_PRESET", "dual-engine"),
		PurgeSchedule:       getEnv("PURGE_SCHEDULE", "@daily"),
	}

	var err error
	if cfg.OracleRPS, err = strconv.ParseFloat(getEnv("ORACLE_RPS", "1"), 64); err != nil {
		return nil, fmt.Errorf("invalid ORACLE_RPS: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.OracleCacheTTL, err = time.ParseDuration(getEnv("ORACLE_CACHE_TTL", "1080h")); err != nil {
		return nil, fmt.Errorf("invalid ORACLE_CACHE_TTL: %w", err)
	}
	if cfg.SnapshotRetentionDays, err = strconv.Atoi(getEnv("MARKET_SNAPSHOT_RETENTION_DAYS", "45")); err != nil {
		return nil, fmt.Errorf("invalid MARKET_SNAPSHOT_RETENTION_DAYS: %w", err)
	}
	if cfg.BatchConcurrency, err = strconv.Atoi(getEnv("BATCH_CONCURRENCY", "4")); err != nil {
		return nil, fmt.Errorf("invalid BATCH_CONCURRENCY: %w", err)
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.OracleRPS <= 0 {
		return nil, fmt.Errorf("ORACLE_RPS must be positive")
	}
	if cfg.BatchConcurrency < 1 {
		return nil, fmt.Errorf("BATCH_CONCURRENCY must be at least 1")
	}
	if cfg.SnapshotRetentionDays < 1 {
		return nil, fmt.Errorf("MARKET_SNAPSHOT_RETENTION_DAYS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
