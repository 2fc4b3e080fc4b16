package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every injected value; topic names and group ids are never
// hard-coded inside business logic.
type Config struct {
	HTTPAddr    string
	PostgresDSN string

	KafkaBrokers     []string
	CommandsTopic    string
	EventsTopic      string
	ProcessorGroupID string
	SagaGroupID      string

	DispatchInterval     time.Duration
	ConsumerMaxRetries   int
	ConsumerRetryBackoff time.Duration

	RetentionWindow time.Duration
	JanitorInterval time.Duration
}

// Load reads .env when present and falls back to system env variables.
func Load() *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		KafkaBrokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		CommandsTopic:    getEnv("COMMANDS_TOPIC", "transactions.commands"),
		EventsTopic:      getEnv("EVENTS_TOPIC", "accounts.events"),
		ProcessorGroupID: getEnv("PROCESSOR_GROUP_ID", "account-service-group"),
		SagaGroupID:      getEnv("SAGA_GROUP_ID", "transaction-service-group"),

		DispatchInterval:     getDuration("OUTBOX_DISPATCH_INTERVAL", 5*time.Second),
		ConsumerMaxRetries:   getInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerRetryBackoff: getDuration("CONSUMER_RETRY_BACKOFF", time.Second),

		RetentionWindow: getDuration("RETENTION_WINDOW", 7*24*time.Hour),
		JanitorInterval: getDuration("JANITOR_INTERVAL", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
