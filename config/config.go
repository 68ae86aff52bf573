// Package config has the configuration of the pipeline and the API
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultExportURL    = "https://www.canada.ca/content/dam/hc-sc/documents/services/drug-product-database/allfiles.zip"
	DefaultIndexURL     = "https://www.canada.ca/en/health-canada/services/drugs-health-products/drug-products/drug-product-database/what-data-extract-drug-product-database.html"
	DefaultMonographURL = "https://health-products.canada.ca/dpd-bdpp/info"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               string
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int
	MaxRequestBody    int // bytes
	MaxHeaderSize     int // bytes

	DataDir      string // where the extract files are unzipped
	ArtifactsDir string // snapshot and audit JSON files
	DatabaseURL  string // postgres:// DSN, or a sqlite file path

	ExportURL    string
	IndexURL     string
	MonographURL string

	LookupWorkers int
	LookupTimeout time.Duration

	TrademarkReferencePath string
	TrademarkRulesPath     string

	UpdateTimes string // gocron At() expression, e.g. "06:00;18:00"
}

// LoadEnv reads a .env file from the working directory if there is one.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               getEnvWithDefault("ENV", "dev"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxRequestBody:    getIntEnvWithDefault("MAX_REQUEST_BODY", 1048576),
		MaxHeaderSize:     getIntEnvWithDefault("MAX_HEADER_SIZE", 1048576),

		DataDir:      getEnvWithDefault("DATA_DIR", "data"),
		ArtifactsDir: getEnvWithDefault("ARTIFACTS_DIR", "artifacts"),
		DatabaseURL:  getEnvWithDefault("DATABASE_URL", "dpd.db"),

		ExportURL:    getEnvWithDefault("EXPORT_URL", DefaultExportURL),
		IndexURL:     getEnvWithDefault("INDEX_URL", DefaultIndexURL),
		MonographURL: getEnvWithDefault("MONOGRAPH_URL", DefaultMonographURL),

		LookupWorkers: getIntEnvWithDefault("LOOKUP_WORKERS", 8),
		LookupTimeout: getDurationEnvWithDefault("LOOKUP_TIMEOUT", 30*time.Second),

		TrademarkReferencePath: getEnvWithDefault("TRADEMARK_REFERENCE_PATH", "data_artifacts/drugs_ccd.json"),
		TrademarkRulesPath:     os.Getenv("TRADEMARK_RULES_PATH"),

		UpdateTimes: getEnvWithDefault("UPDATE_TIMES", "06:00"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateOneOf(cfg.Env, []string{"dev", "staging", "prod", "test"}); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateOneOf(cfg.LogLevel, []string{"debug", "info", "warn", "error"}); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.LogRetentionWeeks <= 0 || cfg.LogRetentionWeeks > 52 {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: must be between 1 and 52, got: %d", cfg.LogRetentionWeeks)
	}

	if cfg.MaxRequestBody <= 0 {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: must be positive, got: %d", cfg.MaxRequestBody)
	}

	if cfg.MaxHeaderSize <= 0 {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: must be positive, got: %d", cfg.MaxHeaderSize)
	}

	if cfg.DataDir == "" {
		return fmt.Errorf("invalid DATA_DIR: cannot be empty")
	}

	if cfg.ArtifactsDir == "" {
		return fmt.Errorf("invalid ARTIFACTS_DIR: cannot be empty")
	}

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("invalid DATABASE_URL: cannot be empty")
	}

	for name, raw := range map[string]string{
		"EXPORT_URL":    cfg.ExportURL,
		"INDEX_URL":     cfg.IndexURL,
		"MONOGRAPH_URL": cfg.MonographURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if cfg.LookupWorkers < 1 || cfg.LookupWorkers > 64 {
		return fmt.Errorf("invalid LOOKUP_WORKERS: must be between 1 and 64, got: %d", cfg.LookupWorkers)
	}

	if cfg.LookupTimeout <= 0 {
		return fmt.Errorf("invalid LOOKUP_TIMEOUT: must be positive, got: %s", cfg.LookupTimeout)
	}

	if err := validateUpdateTimes(cfg.UpdateTimes); err != nil {
		return fmt.Errorf("invalid UPDATE_TIMES: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1024 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1024 and 65535, got: %d", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "localhost" {
		return nil
	}

	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	return nil
}

func validateOneOf(value string, allowed []string) error {
	value = strings.ToLower(value)
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("must be one of: %v, got: %s", allowed, value)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// validateUpdateTimes checks a semicolon separated list of HH:MM times
func validateUpdateTimes(times string) error {
	if times == "" {
		return fmt.Errorf("cannot be empty")
	}
	for _, t := range strings.Split(times, ";") {
		if _, err := time.Parse("15:04", strings.TrimSpace(t)); err != nil {
			return fmt.Errorf("%q is not a HH:MM time", t)
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"DATA_DIR",
		"ARTIFACTS_DIR",
		"DATABASE_URL",
		"EXPORT_URL",
		"INDEX_URL",
		"MONOGRAPH_URL",
		"LOOKUP_WORKERS",
		"LOOKUP_TIMEOUT",
		"TRADEMARK_REFERENCE_PATH",
		"TRADEMARK_RULES_PATH",
		"UPDATE_TIMES",
	}
}
