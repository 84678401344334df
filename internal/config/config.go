// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Count cache backends.
const (
	CacheBackendLocal = "local"
	CacheBackendRedis = "redis"
	CacheBackendNone  = "none"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Store       StoreConfig
	Pagination  PaginationConfig
	Cache       CacheConfig
	Search      SearchConfig
	Fanout      FanoutConfig
	Maintenance MaintenanceConfig
	Notify      NotifyConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

// StoreConfig holds document store configuration.
type StoreConfig struct {
	// DataPath is the Badger directory. Empty runs the store in memory.
	DataPath string
	// AggregateCount enables the count aggregate (default: true).
	AggregateCount bool
	// TxnMaxRetries bounds optimistic transaction attempts (default: 8).
	TxnMaxRetries int `validate:"gte=1,lte=100"`
}

// PaginationConfig holds page size and total counting limits.
type PaginationConfig struct {
	DefaultPageSize int `validate:"gte=1,ltefield=MaxPageSize"`
	MaxPageSize     int `validate:"gte=1,lte=1000"`
	// CountScanLimit bounds the full-scan total fallback.
	CountScanLimit int `validate:"gte=1"`
}

// CacheConfig holds the total-count cache configuration.
type CacheConfig struct {
	Backend  string        `validate:"oneof=local redis none"`
	TTL      time.Duration `validate:"gte=0"`
	RedisURL string        `validate:"required_if=Backend redis"`
}

// SearchConfig holds the title search index configuration.
type SearchConfig struct {
	// IndexEnabled builds a dedicated full-text index (default: true).
	// When disabled, search falls back to title prefix matching.
	IndexEnabled bool
	// IndexPath is the index directory (default: {data}/search). Ignored in memory mode.
	IndexPath string
}

// FanoutConfig holds fan-out read configuration.
type FanoutConfig struct {
	Concurrency int `validate:"gte=1,lte=256"`
}

// MaintenanceConfig holds background sweep configuration.
type MaintenanceConfig struct {
	// SweepInterval between orphan sweeps; zero disables scheduled sweeps.
	SweepInterval time.Duration `validate:"gte=0"`
	// SweepRate is the maximum number of sweep deletes per second.
	SweepRate int `validate:"gte=1"`
}

// NotifyConfig holds notification dispatch configuration.
type NotifyConfig struct {
	Buffer int `validate:"gte=1"`
}

// LoadConfig loads configuration from os.Args, the environment and .env.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("contentgraph", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Badger data directory (empty: in-memory)")
	aggregateCount := fs.String("store-aggregate-count", "", "Enable count aggregation (default: true)")
	txnMaxRetries := fs.String("store-txn-max-retries", "", "Max optimistic transaction attempts (default: 8)")
	pageSizeDefault := fs.String("page-size-default", "", "Default page size (default: 20)")
	pageSizeMax := fs.String("page-size-max", "", "Maximum page size (default: 100)")
	countScanLimit := fs.String("count-scan-limit", "", "Bound for full-scan totals (default: 5000)")
	cacheBackend := fs.String("count-cache-backend", "", "Total count cache: local, redis or none (default: local)")
	cacheTTL := fs.String("count-cache-ttl", "", "Total count cache TTL (default: 30s)")
	redisURL := fs.String("redis-url", "", "Redis URL for the redis cache backend")
	searchEnabled := fs.String("search-index-enabled", "", "Build a dedicated search index (default: true)")
	fanoutConcurrency := fs.String("fanout-concurrency", "", "Parallel reply fetches per detailed read (default: 8)")
	sweepInterval := fs.String("sweep-interval", "", "Interval between orphan sweeps, 0 disables (default: 1h)")
	sweepRate := fs.String("sweep-rate", "", "Max sweep deletes per second (default: 200)")
	notifyBuffer := fs.String("notify-buffer", "", "Pending notification buffer size (default: 256)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
		},
		Store: StoreConfig{
			DataPath:       getConfigValue(*dataPath, "DATA_PATH", ""),
			AggregateCount: getBoolConfigValue(*aggregateCount, "STORE_AGGREGATE_COUNT", true),
			TxnMaxRetries:  getIntConfigValue(*txnMaxRetries, "STORE_TXN_MAX_RETRIES", 8),
		},
		Pagination: PaginationConfig{
			DefaultPageSize: getIntConfigValue(*pageSizeDefault, "PAGE_SIZE_DEFAULT", 20),
			MaxPageSize:     getIntConfigValue(*pageSizeMax, "PAGE_SIZE_MAX", 100),
			CountScanLimit:  getIntConfigValue(*countScanLimit, "COUNT_SCAN_LIMIT", 5000),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getConfigValue(*cacheBackend, "COUNT_CACHE_BACKEND", CacheBackendLocal)),
			RedisURL: getConfigValue(*redisURL, "REDIS_URL", ""),
		},
		Search: SearchConfig{
			IndexEnabled: getBoolConfigValue(*searchEnabled, "SEARCH_INDEX_ENABLED", true),
		},
		Fanout: FanoutConfig{
			Concurrency: getIntConfigValue(*fanoutConcurrency, "FANOUT_CONCURRENCY", 8),
		},
		Maintenance: MaintenanceConfig{
			SweepRate: getIntConfigValue(*sweepRate, "SWEEP_RATE", 200),
		},
		Notify: NotifyConfig{
			Buffer: getIntConfigValue(*notifyBuffer, "NOTIFY_BUFFER", 256),
		},
	}

	var err error
	if cfg.Cache.TTL, err = getDurationConfigValue(*cacheTTL, "COUNT_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Maintenance.SweepInterval, err = getDurationConfigValue(*sweepInterval, "SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that all config values are present and within range.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), friendlyMessage(fe)))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "ltefield":
		return "must not exceed " + fe.Param()
	default:
		return "is invalid"
	}
}

// InMemory reports whether the store runs without a data directory.
func (c *Config) InMemory() bool {
	return c.Store.DataPath == ""
}

// expandPaths expands the data path and derives the search index path.
func (c *Config) expandPaths() error {
	if c.Store.DataPath == "" {
		return nil
	}

	expanded, err := expandPath(c.Store.DataPath)
	if err != nil {
		return err
	}
	c.Store.DataPath = expanded

	if c.Search.IndexPath == "" {
		c.Search.IndexPath = filepath.Join(expanded, "search")
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return n
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over .env entries.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
