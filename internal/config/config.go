package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPPort    string
	NodeID      int64

	LogLevel  string
	LogFormat string

	OTLPEndpoint      string
	OtelEnabled       bool
	OtelSamplingRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	SMTP      SMTPConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig

	BootstrapAdminUsername string
	BootstrapAdminEmail    string
}

type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

// SchedulerConfig drives the alert loop. An empty Jobs list runs every job.
type SchedulerConfig struct {
	Enabled         bool
	IntervalSeconds int
	LockTTLSeconds  int
	Jobs            []string
}

// RateLimitConfig throttles mutating API calls per user. It needs Redis.
type RateLimitConfig struct {
	Enabled    bool
	WriteRate  float64
	WriteBurst int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "coverdesk"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPPort:     getenv("HTTP_PORT", "8080"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OtelEnabled:  getenvBool("OTEL_ENABLED", false),

		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "coverdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		SMTP: SMTPConfig{
			Enabled:  getenvBool("SMTP_ENABLED", false),
			Host:     getenv("SMTP_HOST", "localhost"),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "no-reply@coverdesk.local"),
			BaseURL:  strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getenvBool("SCHEDULER_ENABLED", true),
			IntervalSeconds: getenvInt("SCHEDULER_INTERVAL_SECONDS", 300),
			LockTTLSeconds:  getenvInt("SCHEDULER_LOCK_TTL_SECONDS", 240),
			Jobs:            getenvList("SCHEDULER_JOBS"),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", false),
			WriteRate:  getenvFloat("RATE_LIMIT_WRITE_RATE", 5),
			WriteBurst: getenvInt("RATE_LIMIT_WRITE_BURST", 20),
		},

		BootstrapAdminUsername: strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_USERNAME", "")),
		BootstrapAdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
