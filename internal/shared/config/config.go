package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	KurrentDB  KurrentDBConfig
	Auth       AuthConfig
	Classifier ClassifierConfig
	Portal     PortalConfig
	Ranking    RankingConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the connection settings for the worker-metrics cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// ClassifierConfig points at the external AI classification service that
// routes citizen reports to a department.
type ClassifierConfig struct {
	URL     string
	Enabled bool
	// TimeoutSeconds bounds a single classification call
	TimeoutSeconds int
}

// PortalConfig holds the connection settings for the legacy citizen portal
// (SQL Server) that receives best-effort status mirrors.
type PortalConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Enabled  bool
}

// RankingConfig bounds the leaderboard's per-worker scoring fan-out.
type RankingConfig struct {
	// MaxConcurrentReads caps in-flight scoring queries against the store
	MaxConcurrentReads int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "civic"),
			Password: getEnv("DB_PASSWORD", "civic"),
			Database: getEnv("DB_NAME", "civic"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Classifier: ClassifierConfig{
			URL:            getEnv("CLASSIFIER_URL", "http://localhost:5000"),
			Enabled:        getEnvBool("CLASSIFIER_ENABLED", true),
			TimeoutSeconds: getEnvInt("CLASSIFIER_TIMEOUT_SECONDS", 15),
		},
		Portal: PortalConfig{
			Host:     getEnv("PORTAL_DB_HOST", "localhost"),
			Port:     getEnvInt("PORTAL_DB_PORT", 1433),
			User:     getEnv("PORTAL_DB_USER", "portal"),
			Password: getEnv("PORTAL_DB_PASSWORD", ""),
			Database: getEnv("PORTAL_DB_NAME", "citizen_portal"),
			Enabled:  getEnvBool("PORTAL_MIRROR_ENABLED", false),
		},
		Ranking: RankingConfig{
			MaxConcurrentReads: getEnvInt("RANKING_MAX_CONCURRENT_READS", 10),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
