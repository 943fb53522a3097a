// Package config loads the server configuration from the environment,
// with a .env file picked up for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	JWTSecret string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string

	PostgresHost           string
	PostgresPort           int
	PostgresUser           string
	PostgresPassword       string
	PostgresDB             string
	PostgresMigrationsPath string

	CatalogDBPath         string
	CatalogMigrationsPath string

	OrderAPIBaseURL string
	OrderAPITimeout time.Duration

	KafkaBrokers []string
}

// Load reads the environment. A missing .env file is fine, the defaults
// target a local docker-compose setup.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "meatline"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		PostgresHost:           getEnv("DB_HOST", "localhost"),
		PostgresPort:           getInt("DB_PORT", 5432),
		PostgresUser:           getEnv("DB_USER", "postgres"),
		PostgresPassword:       getEnv("DB_PASSWORD", "postgres"),
		PostgresDB:             getEnv("DB_NAME", "meatline"),
		PostgresMigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations/postgres"),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./meatline.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./migrations/sqlite"),

		OrderAPIBaseURL: getEnv("ORDER_API_BASE_URL", "http://localhost:9090"),
		OrderAPITimeout: getDuration("ORDER_API_TIMEOUT", 15*time.Second),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}
