// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds application configuration
type Config struct {
	DataDir  string `toml:"data_dir"` // Base directory for local databases (always absolute after Load)
	LogLevel string `toml:"log_level"`
	Port     int    `toml:"port"`
	DevMode  bool   `toml:"dev_mode"`

	Backend  BackendConfig  `toml:"backend"`
	Session  SessionConfig  `toml:"session"`
	Cache    CacheConfig    `toml:"cache"`
	History  HistoryConfig  `toml:"history"`
	Backup   BackupConfig   `toml:"backup"`
	Schedule ScheduleConfig `toml:"schedule"`
}

// BackendConfig configures the optimization backend client
type BackendConfig struct {
	URL       string  `toml:"url"`
	Timeout   string  `toml:"timeout"`    // duration string, empty = transport default
	RateLimit float64 `toml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int     `toml:"burst"`
}

// SessionConfig holds optimization session defaults
type SessionConfig struct {
	DefaultCapital float64 `toml:"default_capital"`
}

// CacheConfig configures the local stale-fallback cache
type CacheConfig struct {
	PortfolioListTTL string `toml:"portfolio_list_ttl"` // duration string
}

// GetTimeout returns the backend timeout, 0 when unset or invalid
func (b BackendConfig) GetTimeout() time.Duration {
	return parseDuration(b.Timeout, 0)
}

// GetPortfolioListTTL returns the cache TTL for the portfolio directory
func (c CacheConfig) GetPortfolioListTTL() time.Duration {
	return parseDuration(c.PortfolioListTTL, 24*time.Hour)
}

// HistoryConfig configures the activity journal
type HistoryConfig struct {
	RetentionDays int `toml:"retention_days"` // 0 = keep forever
}

// BackupConfig configures journal backups to S3-compatible storage.
// Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"` // Custom endpoint for S3-compatible stores (MinIO, R2)
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	RetentionDays   int    `toml:"retention_days"`
}

// ScheduleConfig holds cron expressions (seconds field included)
type ScheduleConfig struct {
	CacheCleanup     string `toml:"cache_cleanup"`
	HistoryRetention string `toml:"history_retention"`
	Backup           string `toml:"backup"`
	Maintenance      string `toml:"maintenance"`
	CheckDatabases   string `toml:"check_databases"`
}

// Enabled reports whether journal backups are configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		Port:     8080,
		Backend: BackendConfig{
			URL:       "http://localhost:8000",
			RateLimit: 10,
			Burst:     5,
		},
		Session: SessionConfig{
			DefaultCapital: 10000,
		},
		Cache: CacheConfig{
			PortfolioListTTL: "24h",
		},
		History: HistoryConfig{
			RetentionDays: 180,
		},
		Backup: BackupConfig{
			Prefix:        "folio",
			Region:        "auto",
			RetentionDays: 30,
		},
		Schedule: ScheduleConfig{
			CacheCleanup:     "0 0 * * * *",
			HistoryRetention: "0 30 3 * * *",
			Backup:           "0 0 4 * * *",
			Maintenance:      "0 0 5 * * 0",
			CheckDatabases:   "0 15 */6 * * *",
		},
	}
}

// Load reads configuration from optional TOML files, the .env file and
// environment variables, in that order of precedence (later wins).
// Missing files are skipped. FOLIO_CONFIG, when set, is read last.
func Load(paths ...string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if p := os.Getenv("FOLIO_CONFIG"); p != "" {
		paths = append(paths, p)
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.DataDir = getEnv("FOLIO_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Port = getEnvAsInt("FOLIO_PORT", cfg.Port)
	cfg.DevMode = getEnvAsBool("DEV_MODE", cfg.DevMode)

	cfg.Backend.URL = strings.TrimRight(getEnv("FOLIO_BACKEND_URL", cfg.Backend.URL), "/")
	cfg.Backend.Timeout = getEnv("FOLIO_BACKEND_TIMEOUT", cfg.Backend.Timeout)
	cfg.Backend.RateLimit = getEnvAsFloat("FOLIO_BACKEND_RPS", cfg.Backend.RateLimit)
	cfg.Backend.Burst = getEnvAsInt("FOLIO_BACKEND_BURST", cfg.Backend.Burst)

	cfg.Session.DefaultCapital = getEnvAsFloat("FOLIO_DEFAULT_CAPITAL", cfg.Session.DefaultCapital)
	cfg.Cache.PortfolioListTTL = getEnv("FOLIO_CACHE_TTL", cfg.Cache.PortfolioListTTL)
	cfg.History.RetentionDays = getEnvAsInt("FOLIO_HISTORY_RETENTION_DAYS", cfg.History.RetentionDays)

	cfg.Backup.Bucket = getEnv("FOLIO_BACKUP_BUCKET", cfg.Backup.Bucket)
	cfg.Backup.Prefix = getEnv("FOLIO_BACKUP_PREFIX", cfg.Backup.Prefix)
	cfg.Backup.Region = getEnv("FOLIO_BACKUP_REGION", cfg.Backup.Region)
	cfg.Backup.Endpoint = getEnv("FOLIO_BACKUP_ENDPOINT", cfg.Backup.Endpoint)
	cfg.Backup.AccessKeyID = getEnv("FOLIO_BACKUP_ACCESS_KEY_ID", cfg.Backup.AccessKeyID)
	cfg.Backup.SecretAccessKey = getEnv("FOLIO_BACKUP_SECRET_ACCESS_KEY", cfg.Backup.SecretAccessKey)
	cfg.Backup.RetentionDays = getEnvAsInt("FOLIO_BACKUP_RETENTION_DAYS", cfg.Backup.RetentionDays)
	cfg.Schedule.Backup = getEnv("FOLIO_BACKUP_SCHEDULE", cfg.Schedule.Backup)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.Backend.URL)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Session.DefaultCapital <= 0 {
		return fmt.Errorf("default capital must be positive, got %v", c.Session.DefaultCapital)
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend rate limit must not be negative")
	}
	if c.Backend.Timeout != "" {
		if d, err := time.ParseDuration(c.Backend.Timeout); err != nil || d < 0 {
			return fmt.Errorf("invalid backend timeout %q", c.Backend.Timeout)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
