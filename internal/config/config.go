package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPPort    string
	Capture     CaptureConfig
	Queue       QueueConfig
	Pruning     PruningConfig
	Geolocation GeolocationConfig
	Privacy     PrivacyConfig
	Cache       CacheConfig
	Dashboard   DashboardConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
}

type CaptureConfig struct {
	Web         bool
	API         bool
	Bots        bool
	IgnorePaths []string
}

type QueueConfig struct {
	Enabled bool
}

type PruningConfig struct {
	Enabled  bool
	Days     int
	Interval time.Duration
}

type GeolocationConfig struct {
	Enabled  bool
	Provider string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
	MaxMind  MaxMindConfig
}

type MaxMindConfig struct {
	Type         string
	AccountID    string
	LicenseKey   string
	DatabasePath string
}

type PrivacyConfig struct {
	AnonymizeIP bool
	RespectDNT  bool
}

type CacheConfig struct {
	TTL time.Duration
}

type DashboardConfig struct {
	Pathname string
}

type PostgresConfig struct {
	Host            string
	Port            string
	Database        string
	Username        string
	Password        string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string
}

type KafkaConfig struct {
	Brokers          []string
	Topic            string
	GroupID          string
	ProducerRetries  int
	ProducerTimeout  time.Duration
	RequiredAcks     int
	CompressionType  string
	MaxMessageBytes  int
	IdempotentWrites bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("ANALYTICS_HTTP_PORT", "8080"),
	}

	cfg.Capture = CaptureConfig{
		Web:         getEnvAsBool("REQUEST_ANALYTICS_CAPTURE_WEB", true),
		API:         getEnvAsBool("REQUEST_ANALYTICS_CAPTURE_API", true),
		Bots:        getEnvAsBool("REQUEST_ANALYTICS_CAPTURE_BOTS", false),
		IgnorePaths: splitNonEmpty(getEnv("REQUEST_ANALYTICS_IGNORE_PATHS", "")),
	}

	cfg.Queue = QueueConfig{
		Enabled: getEnvAsBool("REQUEST_ANALYTICS_QUEUE_ENABLED", false),
	}

	cfg.Pruning = PruningConfig{
		Enabled:  getEnvAsBool("REQUEST_ANALYTICS_PRUNING_ENABLED", true),
		Days:     getEnvAsInt("REQUEST_ANALYTICS_PRUNING_DAYS", 90),
		Interval: getEnvAsDuration("REQUEST_ANALYTICS_PRUNING_INTERVAL", 24*time.Hour),
	}

	cfg.Geolocation = GeolocationConfig{
		Enabled:  getEnvAsBool("REQUEST_ANALYTICS_GEO_ENABLED", true),
		Provider: getEnv("REQUEST_ANALYTICS_GEO_PROVIDER", "ipapi"),
		APIKey:   getEnv("REQUEST_ANALYTICS_GEO_API_KEY", ""),
		Timeout:  getEnvAsDuration("REQUEST_ANALYTICS_GEO_TIMEOUT", 5*time.Second),
		CacheTTL: getEnvAsDuration("REQUEST_ANALYTICS_GEO_CACHE_TTL", 24*time.Hour),
		MaxMind: MaxMindConfig{
			Type:         getEnv("REQUEST_ANALYTICS_MAXMIND_TYPE", "webservice"),
			AccountID:    getEnv("REQUEST_ANALYTICS_MAXMIND_ACCOUNT_ID", ""),
			LicenseKey:   getEnv("REQUEST_ANALYTICS_MAXMIND_LICENSE_KEY", ""),
			DatabasePath: getEnv("REQUEST_ANALYTICS_MAXMIND_DATABASE_PATH", ""),
		},
	}

	cfg.Privacy = PrivacyConfig{
		AnonymizeIP: getEnvAsBool("REQUEST_ANALYTICS_ANONYMIZE_IP", false),
		RespectDNT:  getEnvAsBool("REQUEST_ANALYTICS_RESPECT_DNT", true),
	}

	cfg.Cache = CacheConfig{
		TTL: getEnvAsDuration("REQUEST_ANALYTICS_CACHE_TTL", 5*time.Minute),
	}

	cfg.Dashboard = DashboardConfig{
		Pathname: getEnv("REQUEST_ANALYTICS_PATHNAME", "analytics"),
	}

	cfg.Postgres = PostgresConfig{
		Host:            getEnv("POSTGRES_HOST", "localhost"),
		Port:            getEnv("POSTGRES_PORT", "5432"),
		Database:        getEnv("POSTGRES_DB", "analytics"),
		Username:        getEnv("POSTGRES_USER", "admin"),
		Password:        getEnv("POSTGRES_PASSWORD", "password"),
		Table:           getEnv("REQUEST_ANALYTICS_TABLE_NAME", "request_analytics"),
		MaxOpenConns:    getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
	}

	brokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	cfg.Kafka = KafkaConfig{
		Brokers:          strings.Split(brokers, ","),
		Topic:            getEnv("KAFKA_TOPIC_CAPTURES", "request-captures"),
		GroupID:          getEnv("KAFKA_GROUP_ID", "capture-worker"),
		ProducerRetries:  getEnvAsInt("KAFKA_PRODUCER_RETRIES", 3),
		ProducerTimeout:  getEnvAsDuration("KAFKA_PRODUCER_TIMEOUT", 10*time.Second),
		RequiredAcks:     getEnvAsInt("KAFKA_REQUIRED_ACKS", -1),
		CompressionType:  getEnv("KAFKA_COMPRESSION", "snappy"),
		IdempotentWrites: getEnvAsBool("KAFKA_IDEMPOTENT", true),
		MaxMessageBytes:  getEnvAsInt("KAFKA_MAX_MESSAGE_BYTES", 1000000),
	}

	return cfg, nil
}

func (c *PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitNonEmpty(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
