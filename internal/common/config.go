// Package common provides shared utilities for the KI7MT AMGeO/AMPERE tools.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
	ApexHeightKm       float64 // reference height for magnetic <-> geodetic mapping
	LogLevel           string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "ampere"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            getEnv("KI7MT_DATA_DIR", "/var/lib/ki7mt-ai-lab"),
		ApexHeightKm:       getEnvFloat("APEX_HEIGHT_KM", 110),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// LoadConfig loads the first .env file found (working directory, then
// ~/.config/ki7mt-amgeo) and returns the resulting configuration.
// A missing .env is not an error.
func LoadConfig() (*Config, error) {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		break
	}

	cfg := DefaultConfig()
	if cfg.ApexHeightKm < 0 {
		return nil, fmt.Errorf("APEX_HEIGHT_KM must be >= 0, got %g", cfg.ApexHeightKm)
	}
	return cfg, nil
}

// Quiet reports whether LOG_LEVEL suppresses progress output.
func (c *Config) Quiet() bool {
	return c.LogLevel == "quiet" || c.LogLevel == "error"
}

// ClickHouseAddr returns host:port for the native protocol.
func (c *Config) ClickHouseAddr() string {
	return fmt.Sprintf("%s:%d", c.ClickHouseHost, c.ClickHousePort)
}

// AmpereDataDir returns the AMPERE current-totals directory path.
func (c *Config) AmpereDataDir() string {
	return filepath.Join(c.DataDir, "ampere")
}

// AmgeoDataDir returns the AMGeO potential map directory path.
func (c *Config) AmgeoDataDir() string {
	return filepath.Join(c.DataDir, "amgeo")
}

func envPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ki7mt-amgeo", ".env"))
	}
	return paths
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
