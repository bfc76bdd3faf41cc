package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the taskflow binaries.
type Config struct {
	DatabaseURL     string
	HTTPPort        string
	JWTSecret       string
	LogLevel        string
	NotifyWorkers   int
	NotifyQueueSize int
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		HTTPPort:        getenv("HTTP_PORT", "8080"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		LogLevel:        getenv("LOG_LEVEL", "INFO"),
		NotifyWorkers:   4,
		NotifyQueueSize: 256,
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DatabaseURLFromParts()
	}

	var err error
	if cfg.NotifyWorkers, err = getint("NOTIFY_WORKERS", cfg.NotifyWorkers); err != nil {
		return Config{}, err
	}
	if cfg.NotifyQueueSize, err = getint("NOTIFY_QUEUE_SIZE", cfg.NotifyQueueSize); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DatabaseURLFromParts builds a connection string from DB_* variables, or
// returns "" when any of them is missing.
func DatabaseURLFromParts() string {
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUsername == "" || dbPassword == "" || dbHost == "" || dbPort == "" || dbName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUsername, dbPassword, dbHost, dbPort, dbName)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
