package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Database Configuration
	Database DatabaseConfig `yaml:"database"`

	// GeoIP Configuration
	GeoIP GeoIPConfig `yaml:"geoip"`

	// Log configuration
	LogLevel string `yaml:"log_level"`

	// Server Configuration
	Server ServerConfig `yaml:"server"`

	// Import Configuration
	Import ImportConfig `yaml:"import"`
}

// DatabaseConfig contains database-related settings
type DatabaseConfig struct {
	Path               string        `yaml:"path"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLife        time.Duration `yaml:"conn_max_life"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// GeoIPConfig contains the GeoIP country database used to fill missing countries
type GeoIPConfig struct {
	CountryDBPath string `yaml:"country_db"`
	Enabled       bool   `yaml:"enabled"`
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Production bool   `yaml:"production"`
}

// ImportConfig contains batch import tuning
type ImportConfig struct {
	BatchSize      int `yaml:"batch_size"`
	ProgressEvery  int `yaml:"progress_every"`
	FailureSamples int `yaml:"failure_samples"`
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from .env file and environment variables.
// If path is not empty, the YAML file at path is applied on top.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Path:               getEnv("DB_PATH", "ezvis.db"),
			MaxOpenConns:       getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvAsInt("DB_MAX_IDLE_CONNS", 3),
			ConnMaxLife:        getEnvAsDuration("DB_CONN_MAX_LIFE", time.Hour),
			SlowQueryThreshold: getEnvAsDuration("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		},
		GeoIP: GeoIPConfig{
			CountryDBPath: getEnv("GEOIP_COUNTRY_DB", "geoip/GeoLite2-Country.mmdb"),
			Enabled:       getEnvAsBool("GEOIP_ENABLED", false),
		},
		Server: ServerConfig{
			Host:       getEnv("SERVER_HOST", "127.0.0.1"),
			Port:       getEnvAsInt("SERVER_PORT", 8080),
			Production: getEnvAsBool("SERVER_PRODUCTION", false),
		},
		Import: ImportConfig{
			BatchSize:      getEnvAsInt("IMPORT_BATCH_SIZE", 1000),
			ProgressEvery:  getEnvAsInt("IMPORT_PROGRESS_EVERY", 10000),
			FailureSamples: getEnvAsInt("IMPORT_FAILURE_SAMPLES", 20),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if path == "" {
		path = os.Getenv("EZVIS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the importer and server cannot run with
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize)
	}
	if c.Import.ProgressEvery <= 0 {
		return fmt.Errorf("import.progress_every must be positive, got %d", c.Import.ProgressEvery)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Helper functions to read environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
