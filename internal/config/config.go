package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath      string
	SourcesPath string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Processing settings
	Schedule     string
	WorkerCount  int
	FetchTimeout time.Duration
	CacheTTL     time.Duration

	// External catalog
	GoogleBooksAPIKey string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults
// and environment fallbacks for secrets.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:            DefaultDBPath,
		SourcesPath:       DefaultSourcesPath,
		ServerHost:        DefaultServerHost,
		ServerPort:        DefaultServerPort,
		APIKey:            GetEnvString("AGGREGATOR_API_KEY", ""),
		Schedule:          DefaultSchedule,
		WorkerCount:       DefaultWorkerCount,
		FetchTimeout:      DefaultFetchTimeoutSeconds * time.Second,
		CacheTTL:          GetEnvDuration("AGGREGATOR_CACHE_TTL", DefaultCacheTTLHours*time.Hour),
		GoogleBooksAPIKey: GetEnvString("AGGREGATOR_GOOGLE_BOOKS_KEY", ""),
		LogLevel:          logLevel,
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
