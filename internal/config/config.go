package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration (operator and customer bearer tokens)
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment processor configuration
	Payment PaymentConfig

	// Platform fee configuration
	Fees FeeConfig

	// Notification dispatch configuration
	Notification NotificationConfig

	// Metrics configuration
	Metrics MetricsConfig

	// Scheduled jobs configuration
	Cron CronConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	Driver             string // "postgres" (lib/pq) or "pgx"
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	MigrateOnStart     bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// PaymentConfig holds Stripe configuration
type PaymentConfig struct {
	SecretKey     string // Stripe secret API key (SECRET - never expose to client)
	WebhookSecret string // Signing secret for the webhook endpoint
	Currency      string // Single settlement currency, lower-case ISO code
	SuccessURL    string // Redirect after a completed checkout
	CancelURL     string // Redirect after an abandoned checkout

	// MaxAddons bounds add-ons per checkout; the metadata envelope has a size limit
	MaxAddons int
	// DefaultCountryCode is applied to guest phone numbers given in national format
	DefaultCountryCode string
}

// FeeConfig holds the flat platform fee and its split
type FeeConfig struct {
	PlatformFeeCents   int64
	PlatformShareRatio float64
}

// NotificationConfig holds notification dispatcher configuration
type NotificationConfig struct {
	Transport string // "log", "sms" or "kafka"
	Workers   int
	QueueSize int
	Timeout   time.Duration
	SMS       SMSConfig
	Kafka     KafkaConfig
}

// SMSConfig holds SMS gateway configuration
type SMSConfig struct {
	APIURL   string
	Username string
	Password string
	Mask     string
}

// KafkaConfig holds the notification topic configuration
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// MetricsConfig holds metrics push configuration. Pull via /metrics is always on.
type MetricsConfig struct {
	PushURL      string
	PushInterval time.Duration
	ExtraLabels  string
}

// CronConfig holds scheduled job configuration
type CronConfig struct {
	Enabled                bool
	AlertDigestSchedule    string
	AuditRetentionSchedule string
	AuditRetentionDays     int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Driver:             getEnv("DATABASE_DRIVER", "postgres"),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			MigrateOnStart:     getEnvAsBool("DATABASE_MIGRATE_ON_START", true),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "servicehub-booking"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Payment: PaymentConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/booking/success"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/booking/cancel"),

			MaxAddons:          getEnvAsInt("CHECKOUT_MAX_ADDONS", 12),
			DefaultCountryCode: getEnv("PHONE_DEFAULT_COUNTRY_CODE", "1"),
		},
		Fees: FeeConfig{
			PlatformFeeCents:   int64(getEnvAsInt("PLATFORM_FEE_CENTS", 338)),
			PlatformShareRatio: getEnvAsFloat("PLATFORM_FEE_PLATFORM_RATIO", 0.60),
		},
		Notification: NotificationConfig{
			Transport: getEnv("NOTIFY_TRANSPORT", "log"),
			Workers:   getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Timeout:   time.Duration(getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10)) * time.Second,
			SMS: SMSConfig{
				APIURL:   getEnv("SMS_API_URL", ""),
				Username: getEnv("SMS_USERNAME", ""),
				Password: getEnv("SMS_PASSWORD", ""),
				Mask:     getEnv("SMS_MASK", ""),
			},
			Kafka: KafkaConfig{
				Brokers:      getEnvAsSlice("KAFKA_BROKERS", nil),
				Topic:        getEnv("KAFKA_NOTIFICATION_TOPIC", "booking-notifications"),
				BatchTimeout: time.Duration(getEnvAsInt("KAFKA_WRITER_BATCH_TIMEOUT_MS", 100)) * time.Millisecond,
			},
		},
		Metrics: MetricsConfig{
			PushURL:      getEnv("METRICS_PUSH_URL", ""),
			PushInterval: time.Duration(getEnvAsInt("METRICS_PUSH_INTERVAL_SECONDS", 15)) * time.Second,
			ExtraLabels:  getEnv("METRICS_EXTRA_LABELS", `service="booking-backend"`),
		},
		Cron: CronConfig{
			Enabled:                getEnvAsBool("CRON_ENABLED", true),
			AlertDigestSchedule:    getEnv("CRON_ALERT_DIGEST_SCHEDULE", "0 */15 * * * *"),
			AuditRetentionSchedule: getEnv("CRON_AUDIT_RETENTION_SCHEDULE", "0 30 3 * * *"),
			AuditRetentionDays:     getEnvAsInt("CRON_AUDIT_RETENTION_DAYS", 90),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "pgx" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'postgres' or 'pgx')", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Payment.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	if c.Payment.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	if len(c.Payment.Currency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be a three-letter ISO code, got %q", c.Payment.Currency)
	}

	if c.Payment.MaxAddons < 0 || c.Payment.MaxAddons > 12 {
		return fmt.Errorf("CHECKOUT_MAX_ADDONS must be between 0 and 12, got %d", c.Payment.MaxAddons)
	}

	if c.Fees.PlatformFeeCents < 0 {
		return fmt.Errorf("PLATFORM_FEE_CENTS cannot be negative")
	}

	if c.Fees.PlatformShareRatio < 0 || c.Fees.PlatformShareRatio > 1 {
		return fmt.Errorf("PLATFORM_FEE_PLATFORM_RATIO must be between 0 and 1, got %v", c.Fees.PlatformShareRatio)
	}

	if c.Notification.Workers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be at least 1")
	}

	switch c.Notification.Transport {
	case "log":
	case "sms":
		if c.Notification.SMS.APIURL == "" {
			return fmt.Errorf("SMS_API_URL is required for the sms transport")
		}
		if c.Notification.SMS.Username == "" || c.Notification.SMS.Password == "" {
			return fmt.Errorf("SMS_USERNAME and SMS_PASSWORD are required for the sms transport")
		}
	case "kafka":
		if len(c.Notification.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka transport")
		}
	default:
		return fmt.Errorf("invalid NOTIFY_TRANSPORT: %s (must be 'log', 'sms' or 'kafka')", c.Notification.Transport)
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
