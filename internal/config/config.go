package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration, loaded once at startup
// from the environment and treated as immutable afterwards.
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Elasticsearch ElasticsearchConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Detection     DetectionConfig
	Retention     RetentionConfig
	Jobs          JobsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ElasticsearchConfig struct {
	Addresses    []string
	Username     string
	Password     string
	Index        string
	QueryTimeout time.Duration
	MaxResults   int
}

type PostgresConfig struct {
	URL string
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers    []string
	AlertTopic string
}

// DetectionConfig carries the externally tunable detector thresholds.
type DetectionConfig struct {
	WindowSlice time.Duration
	// MaxTravelSpeedKmH is the fastest plausible travel speed; a login pair
	// requiring a higher speed raises an impossible travel alert.
	MaxTravelSpeedKmH float64
	Concurrency       int
}

// RetentionConfig carries the per-model maximum ages, in days.
type RetentionConfig struct {
	UserMaxDays  int
	LoginMaxDays int
	AlertMaxDays int
}

type JobsConfig struct {
	DetectionInterval time.Duration
	RetentionInterval time.Duration
	LockTTL           time.Duration
}

// LoadConfig reads configuration from the environment. A .env file is loaded
// first when present so local runs behave like containerized ones.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:    splitList(getEnv("CERTEGO_ELASTICSEARCH", "http://localhost:9200")),
			Username:     getEnv("ELASTIC_USERNAME", ""),
			Password:     getEnv("ELASTIC_PASSWORD", ""),
			Index:        getEnv("CERTEGO_ELASTIC_INDEX", "cloud-*"),
			QueryTimeout: getEnvDuration("ELASTIC_QUERY_TIMEOUT", 90*time.Second),
			MaxResults:   getEnvInt("ELASTIC_MAX_RESULTS", 10000),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(getEnv("KAFKA_BROKERS", "")),
			AlertTopic: getEnv("KAFKA_ALERT_TOPIC", "authwatch.alerts"),
		},
		Detection: DetectionConfig{
			WindowSlice:       getEnvDuration("WINDOW_SLICE", 30*time.Minute),
			MaxTravelSpeedKmH: getEnvFloat("MAX_TRAVEL_SPEED_KMH", 900),
			Concurrency:       getEnvInt("ANALYZER_CONCURRENCY", 8),
		},
		Retention: RetentionConfig{
			UserMaxDays:  getEnvInt("CERTEGO_USER_MAX_DAYS", 60),
			LoginMaxDays: getEnvInt("CERTEGO_LOGIN_MAX_DAYS", 40),
			AlertMaxDays: getEnvInt("CERTEGO_ALERT_MAX_DAYS", 30),
		},
		Jobs: JobsConfig{
			DetectionInterval: getEnvDuration("DETECTION_INTERVAL", 30*time.Minute),
			RetentionInterval: getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
			LockTTL:           getEnvDuration("JOB_LOCK_TTL", 25*time.Minute),
		},
	}

	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("required environment variable DATABASE_URL is not set")
	}
	if cfg.Detection.MaxTravelSpeedKmH <= 0 {
		return nil, fmt.Errorf("MAX_TRAVEL_SPEED_KMH must be positive, got %v", cfg.Detection.MaxTravelSpeedKmH)
	}
	if cfg.Detection.WindowSlice <= 0 {
		return nil, fmt.Errorf("WINDOW_SLICE must be positive, got %v", cfg.Detection.WindowSlice)
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// KafkaEnabled reports whether alert publishing is configured. Kafka is
// optional: with no brokers the emitter only persists and logs.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
