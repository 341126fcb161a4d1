// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stale reference policies for the propagation engine.
const (
	// StalePolicyIgnore propagates to stale references as if they were current.
	StalePolicyIgnore = "ignore"
	// StalePolicyReview flags stale references for manual review and keeps
	// them out of automatic propagation.
	StalePolicyReview = "review"
)

// Store backends.
const (
	StoreBackendMemory = "memory"
	StoreBackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Data        DataConfig
	Store       StoreConfig
	Search      SearchConfig
	Propagation PropagationConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the base path for on-disk state.
type DataConfig struct {
	BasePath string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is "memory" (volatile) or "sqlite" (durable).
	Backend string
	// Path is the sqlite database file (default: {data}/snipsync.db).
	Path string
}

// SearchConfig holds full-text search index configuration.
type SearchConfig struct {
	// Enabled allows disabling the search index entirely (default: true).
	Enabled bool
	// IndexPath is the directory for the Bleve index (default: {data}/search).
	IndexPath string
}

// PropagationConfig holds propagation engine configuration.
type PropagationConfig struct {
	// StalePolicy decides how references whose bound version lags the
	// snippet's current version are treated during proposeUpdate:
	// "ignore" propagates anyway, "review" excludes them and flags the
	// impact for manual review.
	StalePolicy string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for on-disk state")
	storeBackend := flag.String("store", "", "Store backend (memory, sqlite)")
	storePath := flag.String("store-path", "", "SQLite database file")
	searchEnabled := flag.String("search-enabled", "", "Enable the search index (default: true)")
	searchIndexPath := flag.String("search-index-path", "", "Directory for the search index")
	stalePolicy := flag.String("stale-policy", "", "Stale reference policy (ignore, review)")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "SNIPSYNC_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "SNIPSYNC_LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "SNIPSYNC_DATA_PATH", ""),
		},
		Store: StoreConfig{
			Backend: getConfigValue(*storeBackend, "SNIPSYNC_STORE", StoreBackendMemory),
			Path:    getConfigValue(*storePath, "SNIPSYNC_STORE_PATH", ""),
		},
		Search: SearchConfig{
			Enabled:   getBoolConfigValue(*searchEnabled, "SNIPSYNC_SEARCH_ENABLED", true),
			IndexPath: getConfigValue(*searchIndexPath, "SNIPSYNC_SEARCH_INDEX_PATH", ""),
		},
		Propagation: PropagationConfig{
			StalePolicy: getConfigValue(*stalePolicy, "SNIPSYNC_STALE_POLICY", StalePolicyIgnore),
		},
	}

	// Expand derived paths.
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("SNIPSYNC_ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendSQLite:
	default:
		return fmt.Errorf("invalid store backend: %s (must be memory or sqlite)", c.Store.Backend)
	}

	switch c.Propagation.StalePolicy {
	case StalePolicyIgnore, StalePolicyReview:
	default:
		return fmt.Errorf("invalid stale policy: %s (must be ignore or review)", c.Propagation.StalePolicy)
	}

	if c.Store.Backend == StoreBackendSQLite && c.Store.Path == "" {
		return errors.New("store path cannot be empty for the sqlite backend")
	}

	return nil
}

// expandPaths expands the data base path and fills in derived defaults.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultBase := filepath.Join(homeDir, "SnipSync")

	base, err := expandPath(c.Data.BasePath, defaultBase)
	if err != nil {
		return err
	}
	c.Data.BasePath = base

	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(base, "snipsync.db")
	} else if c.Store.Path, err = expandPath(c.Store.Path, ""); err != nil {
		return err
	}

	if c.Search.IndexPath == "" {
		c.Search.IndexPath = filepath.Join(base, "search")
	} else if c.Search.IndexPath, err = expandPath(c.Search.IndexPath, ""); err != nil {
		return err
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
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
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
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

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
