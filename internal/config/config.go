package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/supa-modo/mwukenya-server-sub002/pkg/db"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string

	DB db.Config

	Mpesa MpesaConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// MpesaConfig configures the Daraja STK-push gateway client.
type MpesaConfig struct {
	BaseURL           string
	ConsumerKey       string
	ConsumerSecret    string
	ShortCode         string
	Passkey           string
	CallbackURL       string
	RequestTimeoutSec int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "mwukenya"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),
		DB: db.Config{
			Type:            getenv("DATABASE_TYPE", "postgres"),
			Host:            getenv("DATABASE_HOST", "localhost"),
			Port:            getenv("DATABASE_PORT", "5432"),
			Name:            getenv("DATABASE_NAME", "mwukenya"),
			User:            getenv("DATABASE_USER", "postgres"),
			Password:        getenv("DATABASE_PASSWORD", ""),
			SSLMode:         getenv("DATABASE_SSLMODE", "disable"),
			MaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
			MaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
			ConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
			ConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		},
		Mpesa: MpesaConfig{
			BaseURL:           getenv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:       strings.TrimSpace(getenv("MPESA_CONSUMER_KEY", "")),
			ConsumerSecret:    strings.TrimSpace(getenv("MPESA_CONSUMER_SECRET", "")),
			ShortCode:         strings.TrimSpace(getenv("MPESA_SHORTCODE", "")),
			Passkey:           strings.TrimSpace(getenv("MPESA_PASSKEY", "")),
			CallbackURL:       strings.TrimSpace(getenv("MPESA_CALLBACK_URL", "")),
			RequestTimeoutSec: getenvInt("MPESA_REQUEST_TIMEOUT", 30),
		},
		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(func(cfg Config) db.Config { return cfg.DB }),
	fx.Provide(func(cfg Config) MpesaConfig { return cfg.Mpesa }),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
