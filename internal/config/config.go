package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

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

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// StoreTimeout bounds every durable read/write issued by the
	// entitlement service. A timeout counts as a store failure.
	StoreTimeout time.Duration

	// CacheFreshFor is how long a cached usage snapshot is served without
	// consulting the durable store. Entries older than this are stale but
	// still usable as a fallback when the store is unreachable.
	CacheFreshFor time.Duration

	// AdminAPIKey guards the diagnostic usage endpoint when set.
	AdminAPIKey string

	RateLimit RateLimitConfig

	Reconciler ReconcilerConfig
}

// RateLimitConfig controls the redis token bucket on the consume endpoint.
type RateLimitConfig struct {
	Enabled          bool
	ConsumeUserRate  float64
	ConsumeUserBurst int
}

// ReconcilerConfig controls the background window-reset sweep.
type ReconcilerConfig struct {
	Enabled      bool
	SweepEvery   time.Duration
	BatchSize    int
	LeaseTTL     time.Duration
	SweepTimeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "gradpath"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "gradpath"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		StoreTimeout:  getenvDuration("ENTITLEMENT_STORE_TIMEOUT", 2*time.Second),
		CacheFreshFor: getenvDuration("ENTITLEMENT_CACHE_FRESH_FOR", 30*time.Second),
		AdminAPIKey:   strings.TrimSpace(getenv("ADMIN_API_KEY", "")),

		RateLimit: RateLimitConfig{
			Enabled:          getenvBool("RATE_LIMIT_ENABLED", false),
			ConsumeUserRate:  getenvFloat("RATE_LIMIT_CONSUME_USER_RATE", 5),
			ConsumeUserBurst: getenvInt("RATE_LIMIT_CONSUME_USER_BURST", 10),
		},

		Reconciler: ReconcilerConfig{
			Enabled:      getenvBool("RECONCILER_ENABLED", true),
			SweepEvery:   getenvDuration("RECONCILER_SWEEP_EVERY", 5*time.Minute),
			BatchSize:    getenvInt("RECONCILER_BATCH_SIZE", 200),
			LeaseTTL:     getenvDuration("RECONCILER_LEASE_TTL", time.Minute),
			SweepTimeout: getenvDuration("RECONCILER_SWEEP_TIMEOUT", 30*time.Second),
		},
	}

	return cfg
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
