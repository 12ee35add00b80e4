package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Database    DatabaseConfig
	Stripe      StripeConfig
	Eligibility EligibilityConfig
	Expiry      ExpiryConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	TicketsCreated  string
	EventVisibility string
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type StripeConfig struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// EligibilityConfig mirrors the gate toggles. It is handed to the
// eligibility service explicitly; nothing reads it from global state.
type EligibilityConfig struct {
	EnforceVisibility     bool
	EnforceQuestionnaires bool
	EnforceRSVPDeadline   bool
	EnforceSalesWindow    bool
	EnforceCapacity       bool
}

type ExpiryConfig struct {
	PendingTTL time.Duration
	Interval   time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				TicketsCreated:  getEnv("KAFKA_TOPIC_TICKETS_CREATED", "ticketly.tickets.created"),
				EventVisibility: getEnv("KAFKA_TOPIC_EVENT_VISIBILITY", "ticketly.events.visibility"),
			},
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Stripe: StripeConfig{
			SuccessURL: getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/checkout/success"),
			CancelURL:  getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
			Currency:   getEnv("STRIPE_CURRENCY", "eur"),
		},
		Eligibility: EligibilityConfig{
			EnforceVisibility:     getEnvBool("ELIGIBILITY_ENFORCE_VISIBILITY", true),
			EnforceQuestionnaires: getEnvBool("ELIGIBILITY_ENFORCE_QUESTIONNAIRES", true),
			EnforceRSVPDeadline:   getEnvBool("ELIGIBILITY_ENFORCE_RSVP_DEADLINE", true),
			EnforceSalesWindow:    getEnvBool("ELIGIBILITY_ENFORCE_SALES_WINDOW", true),
			EnforceCapacity:       getEnvBool("ELIGIBILITY_ENFORCE_CAPACITY", true),
		},
		Expiry: ExpiryConfig{
			PendingTTL: time.Duration(getEnvInt("PENDING_TICKET_TTL_MINUTES", 30)) * time.Minute,
			Interval:   time.Duration(getEnvInt("EXPIRY_SWEEP_INTERVAL_MINUTES", 5)) * time.Minute,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
