package config

import (
	"os"
	"strconv"
)

// Config holds all runtime settings. Every field maps to one environment
// variable; optional collaborators (Redis, BTCPay) default to empty values
// and the wiring code decides how to degrade.
type Config struct {
	Env       string // "production" disables pretty logging
	Port      string
	DBPath    string // sqlite database file
	JWTSecret string

	// GatewaySecret authenticates the Steam login front-channel when it
	// exchanges a verified steam id for a session token
	GatewaySecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PublicURL string

	BTCPayURL           string
	BTCPayStoreID       string
	BTCPayAPIKey        string
	BTCPayWebhookSecret string
}

// Load reads the configuration from the environment. Callers are expected
// to have loaded a .env file first (godotenv in main).
func Load() Config {
	return Config{
		Env:       os.Getenv("ENV"),
		Port:      getenv("PORT", "8080"),
		DBPath:    getenv("DB_PATH", "marketplace.db"),
		JWTSecret: getenv("JWT_SECRET", "marketplace-secret-key"),

		GatewaySecret: getenv("GATEWAY_SECRET", "marketplace-gateway-secret"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),

		PublicURL: getenv("PUBLIC_URL", "http://localhost:8080"),

		BTCPayURL:           os.Getenv("BTCPAY_URL"),
		BTCPayStoreID:       os.Getenv("BTCPAY_STORE_ID"),
		BTCPayAPIKey:        os.Getenv("BTCPAY_API_KEY"),
		BTCPayWebhookSecret: os.Getenv("BTCPAY_WEBHOOK_SECRET"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
