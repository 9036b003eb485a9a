// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Server    ServerConfig
	Auth      AuthConfig
	Labeling  LabelingConfig
	Sentiment SentimentConfig
	Import    ImportConfig
	Metrics   MetricsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the on-disk locations for the database, search index and keys.
type DataConfig struct {
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes)
	AccessTokenKey []byte
	// Session durations
	AccessTokenDuration  time.Duration // e.g., 15m
	RefreshTokenDuration time.Duration // e.g., 720h (30 days)
	// AllowRegistration enables self-service labeler accounts.
	AllowRegistration bool
}

// LabelingConfig holds labeling session behavior.
type LabelingConfig struct {
	// PageSize is the number of entries shown per page (default: 10).
	PageSize int
	// AutoNegativeLowScores pre-labels score 1 and 2 entries as negative when a user joins.
	AutoNegativeLowScores bool
	// SessionTTL is how long an idle labeling session keeps its filter and generation.
	SessionTTL time.Duration
}

// SentimentConfig holds the optional remote sentiment model configuration.
type SentimentConfig struct {
	// APIURL is the base URL of the model service. Empty uses the keyword classifier only.
	APIURL  string
	Timeout time.Duration
	// RequestsPerSecond limits calls to the remote model.
	RequestsPerSecond int
}

// ImportConfig holds the drop-folder importer configuration.
type ImportConfig struct {
	// Dir is watched for new CSV files. Empty disables the watcher.
	Dir string
	// OwnerEmail is the account that owns datasets imported from Dir.
	OwnerEmail string
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool
}

// Bounds for PAGE_SIZE.
const (
	MinPageSize = 1
	MaxPageSize = 100
)

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for database and index storage")

	// Auth flags
	accessTokenDuration := flag.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")
	refreshTokenDuration := flag.String("refresh-token-duration", "", "Refresh token lifetime (e.g., 720h)")
	allowRegistration := flag.String("allow-registration", "", "Allow self-service registration (default: true)")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := flag.String("cors-origins", "", "Comma separated allowed CORS origins (default: *)")

	// Labeling flags
	pageSize := flag.String("page-size", "", "Entries per labeling page (default: 10)")
	autoNegative := flag.String("auto-negative", "", "Pre-label score 1-2 entries as negative on join (default: true)")
	sessionTTL := flag.String("session-ttl", "", "Idle labeling session lifetime (default: 30m)")

	// Sentiment flags
	sentimentURL := flag.String("sentiment-url", "", "Base URL of the sentiment model service")
	sentimentTimeout := flag.String("sentiment-timeout", "", "Sentiment request timeout (default: 10s)")
	sentimentRPS := flag.String("sentiment-rps", "", "Max sentiment requests per second (default: 5)")

	// Import flags
	importDir := flag.String("import-dir", "", "Directory watched for CSV datasets")
	importOwner := flag.String("import-owner", "", "Email of the user owning imported datasets")

	metricsEnabled := flag.String("metrics", "", "Expose Prometheus metrics on /metrics (default: true)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			AccessTokenKey:    nil, // Set by auth.LoadOrGenerateKey during DI bootstrap
			AllowRegistration: getBoolConfigValue(*allowRegistration, "ALLOW_REGISTRATION", true),
		},
		Labeling: LabelingConfig{
			PageSize:              getIntConfigValue(*pageSize, "PAGE_SIZE", 10),
			AutoNegativeLowScores: getBoolConfigValue(*autoNegative, "AUTO_NEGATIVE_LOW_SCORES", true),
		},
		Sentiment: SentimentConfig{
			APIURL:            strings.TrimRight(getConfigValue(*sentimentURL, "SENTIMENT_API_URL", ""), "/"),
			RequestsPerSecond: getIntConfigValue(*sentimentRPS, "SENTIMENT_RPS", 5),
		},
		Import: ImportConfig{
			Dir:        getConfigValue(*importDir, "IMPORT_DIR", ""),
			OwnerEmail: getConfigValue(*importOwner, "IMPORT_OWNER_EMAIL", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolConfigValue(*metricsEnabled, "METRICS_ENABLED", true),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		target    *time.Duration
	}{
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m", &cfg.Auth.AccessTokenDuration},
		{*refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h", &cfg.Auth.RefreshTokenDuration},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "30s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*sessionTTL, "SESSION_TTL", "30m", &cfg.Labeling.SessionTTL},
		{*sentimentTimeout, "SENTIMENT_TIMEOUT", "10s", &cfg.Sentiment.Timeout},
	}
	for _, d := range durations {
		parsed, err := getDurationConfigValue(d.flagValue, d.envKey, d.def)
		if err != nil {
			return nil, err
		}
		*d.target = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if cfg.Import.Dir != "" {
		expanded, err := expandPath(cfg.Import.Dir, "")
		if err != nil {
			return nil, fmt.Errorf("invalid import dir: %w", err)
		}
		cfg.Import.Dir = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
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

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Server.Port != "" {
		if _, err := net.LookupPort("tcp", c.Server.Port); err != nil {
			return fmt.Errorf("invalid server port %q: %w", c.Server.Port, err)
		}
	}

	if c.Labeling.PageSize < MinPageSize || c.Labeling.PageSize > MaxPageSize {
		return fmt.Errorf("invalid page size: %d (must be between %d and %d)", c.Labeling.PageSize, MinPageSize, MaxPageSize)
	}

	if c.Sentiment.APIURL != "" && c.Sentiment.Timeout <= 0 {
		return errors.New("sentiment timeout must be positive when SENTIMENT_API_URL is set")
	}

	if c.Import.Dir != "" && c.Import.OwnerEmail == "" {
		return errors.New("IMPORT_OWNER_EMAIL is required when IMPORT_DIR is set")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

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

// expandDataPath defaults the data path to ~/SentiLabel/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "SentiLabel", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
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
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
