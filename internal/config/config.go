package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Storage
	StorageType string
	DatabaseURL string
	SQLitePath  string
	DBMaxConns  int
	DBMinConns  int

	// Redis (optional, enables the event feed)
	RedisURL string

	// Auth
	JWTSecret                string
	AccessTokenExpireMinutes int
	BcryptCost               int

	// Inference
	InferenceTimeoutSeconds int

	// CORS
	AllowedOrigins []string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		Env:                      getEnvOrDefault("ENV", "development"),
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", "info"),
		StorageType:              strings.ToLower(getEnvOrDefault("STORAGE_TYPE", StoragePostgres)),
		SQLitePath:               getEnvOrDefault("SQLITE_PATH", "./chat_app.db"),
		DBMaxConns:               getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		DBMinConns:               getEnvAsIntOrDefault("DB_MIN_CONNS", 5),
		RedisURL:                 getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:                mustGetEnv("JWT_SECRET"),
		AccessTokenExpireMinutes: getEnvAsIntOrDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		BcryptCost:               getEnvAsIntOrDefault("BCRYPT_COST", 12),
		InferenceTimeoutSeconds:  getEnvAsIntOrDefault("INFERENCE_TIMEOUT_SECONDS", 60),
		AllowedOrigins:           getEnvAsListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.StorageType == StoragePostgres {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	}

	return cfg
}

// Validate reports settings that parse but cannot be used.
func (c *Config) Validate() error {
	switch c.StorageType {
	case StoragePostgres, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q (want postgres, sqlite or memory)", c.StorageType)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) must satisfy 0 <= min <= max, max > 0", c.DBMinConns, c.DBMaxConns)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.InferenceTimeoutSeconds <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT_SECONDS must be positive, got %d", c.InferenceTimeoutSeconds)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
