package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Lookup   LookupConfig
	Cache    CacheConfig
	Server   ServerConfig
	Analysis AnalysisConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// LookupConfig holds external account-lookup configuration
type LookupConfig struct {
	UserAgent            string
	MaxRequestsPerMinute int
}

// CacheConfig holds lookup-cache configuration
type CacheConfig struct {
	Path string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
}

// AnalysisConfig holds analysis defaults
type AnalysisConfig struct {
	DefaultTimezone string
}

// LoadConfig loads configuration from a .env file
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	// a missing .env file is fine; everything has a default or comes
	// from the real environment
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Reddit Profiler"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Lookup: LookupConfig{
			UserAgent:            getEnv("LOOKUP_USER_AGENT", "reddit-profiler/1.0"),
			MaxRequestsPerMinute: getEnvAsInt("LOOKUP_MAX_REQUESTS_PER_MINUTE", 60),
		},
		Cache: CacheConfig{
			Path: getEnv("CACHE_PATH", "./lookup_cache.db"),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Analysis: AnalysisConfig{
			DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Lookup.UserAgent == "" {
		return fmt.Errorf("LOOKUP_USER_AGENT must not be empty")
	}
	if config.Lookup.MaxRequestsPerMinute < 1 {
		return fmt.Errorf("LOOKUP_MAX_REQUESTS_PER_MINUTE must be positive")
	}
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be a valid port number")
	}

	// if the cache lives in a nested directory, create the directory
	cacheDir := filepath.Dir(config.Cache.Path)
	if cacheDir != "." && cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	return nil
}
