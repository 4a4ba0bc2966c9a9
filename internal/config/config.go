package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blogify/notifier/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds everything the server and notifyctl read from the environment.
type Config struct {
	Port        string
	Environment string

	DBDriver    string // postgres | sqlite
	DatabaseURL string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushTTL         int
	PushUrgency     string
	PushTimeout     time.Duration
	PushWorkers     int
	PushQueueSize   int

	StoreTimeout time.Duration
	LockTimeout  time.Duration
	FanoutLimit  int

	LogLevel string
	LogFile  string

	OTelEnabled      bool
	OTelEndpoint     string
	OTelSamplingRate float64

	ContentStore  string // sql | mongo
	MongoURI      string
	MongoDatabase string

	CORSOrigins []string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Log.Warn("No .env file found, using process environment", zap.Error(err))
	}

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		DBDriver:    strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
		DatabaseURL: databaseURL(),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    getEnvOrDefault("VAPID_SUBJECT", "mailto:notifications@blogify.local"),
		PushTTL:         getIntOrDefault("PUSH_TTL", 60),
		PushUrgency:     getEnvOrDefault("PUSH_URGENCY", "normal"),
		PushTimeout:     getDurationOrDefault("PUSH_TIMEOUT", 10*time.Second),
		PushWorkers:     getIntOrDefault("PUSH_WORKERS", 4),
		PushQueueSize:   getIntOrDefault("PUSH_QUEUE_SIZE", 256),

		StoreTimeout: getDurationOrDefault("STORE_TIMEOUT", 5*time.Second),
		LockTimeout:  getDurationOrDefault("LOCK_TIMEOUT", 3*time.Second),
		FanoutLimit:  getIntOrDefault("FANOUT_CONCURRENCY", 16),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", "notifier.log"),

		OTelEnabled:      getEnvOrDefault("OTEL_ENABLED", "false") == "true",
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelSamplingRate: getFloatOrDefault("OTEL_SAMPLING_RATE", 1.0),

		ContentStore:  strings.ToLower(getEnvOrDefault("CONTENT_STORE", "sql")),
		MongoURI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "blogify"),

		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:3000")),
	}
	return cfg
}

// IsDevelopment reports whether secrets may be left unset.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// Validate fails fast on settings the server cannot run without.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.ContentStore {
	case "sql", "mongo":
	default:
		return fmt.Errorf("CONTENT_STORE must be sql or mongo, got %q", c.ContentStore)
	}
	if c.PushWorkers < 1 {
		return fmt.Errorf("PUSH_WORKERS must be at least 1")
	}
	if c.PushQueueSize < 1 {
		return fmt.Errorf("PUSH_QUEUE_SIZE must be at least 1")
	}
	if c.IsDevelopment() {
		return nil
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}
	if c.VAPIDPublicKey == "" || c.VAPIDPrivateKey == "" {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set (generate them with notifyctl vapid-keys)")
	}
	return nil
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if strings.ToLower(os.Getenv("DB_DRIVER")) == "sqlite" {
		return getEnvOrDefault("DB_NAME", "notifier.db")
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "postgres"),
		getEnvOrDefault("DB_PASSWORD", ""),
		getEnvOrDefault("DB_NAME", "blogify"),
		getEnvOrDefault("DB_SSLMODE", "disable"),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		logger.Log.Warn("Invalid integer in environment, using default", zap.String("key", key), zap.String("value", value))
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationOrDefault accepts Go durations ("5s") or bare seconds ("5").
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	logger.Log.Warn("Invalid duration in environment, using default", zap.String("key", key), zap.String("value", value))
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
