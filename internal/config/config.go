package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backend values for Config.StoreBackend.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	OtelEnabled  bool
	OTLPEndpoint string

	// StoreBackend selects the persistence implementation for the whole
	// ledger (wallets, usage, settings, payments). It is resolved once at
	// startup; services never consult it again.
	StoreBackend string

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

	MongoURI      string
	MongoDatabase string

	Gateway  GatewayConfig
	Notifier NotifierConfig

	UsageRetentionDays int
	RetentionInterval  int // hours between purge runs
}

// GatewayConfig carries payment gateway credentials. Empty credentials mean
// the payment surface fails closed.
type GatewayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
}

// NotifierConfig configures the best-effort balance update side-channel.
type NotifierConfig struct {
	URL          string
	RedisAddr    string
	RedisChannel string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "creditledger"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		OtelEnabled:  getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		StoreBackend: normalizeBackend(getenv("STORE_BACKEND", BackendPostgres)),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "creditledger"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		MongoURI:      getenv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGODB_DATABASE", "creditledger"),

		Gateway: GatewayConfig{
			BaseURL:       getenv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
			KeyID:         strings.TrimSpace(getenv("GATEWAY_KEY_ID", "")),
			KeySecret:     strings.TrimSpace(getenv("GATEWAY_KEY_SECRET", "")),
			WebhookSecret: strings.TrimSpace(getenv("GATEWAY_WEBHOOK_SECRET", "")),
			Currency:      getenv("GATEWAY_CURRENCY", "INR"),
		},
		Notifier: NotifierConfig{
			URL:          strings.TrimSpace(getenv("BALANCE_NOTIFY_URL", "")),
			RedisAddr:    strings.TrimSpace(getenv("BALANCE_NOTIFY_REDIS_ADDR", "")),
			RedisChannel: getenv("BALANCE_NOTIFY_REDIS_CHANNEL", "billing.balance_updates"),
		},

		UsageRetentionDays: getenvInt("USAGE_RETENTION_DAYS", 90),
		RetentionInterval:  getenvInt("RETENTION_INTERVAL_HOURS", 24),
	}
}

func normalizeBackend(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case BackendMongo, "mongodb", "document":
		return BackendMongo
	default:
		return BackendPostgres
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}
