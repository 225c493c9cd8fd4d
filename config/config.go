package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type GatewayConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	// Paymob splits checkout into a merchant order plus a payment key bound to
	// an iframe; the iframe id is part of the hosted URL.
	IframeID      string
	IntegrationID string
	ProfileID     string
}

type Config struct {
	HTTPAddr        string
	Currency        string
	CacheBackend    string
	CacheTTL        time.Duration
	CacheMaxEntries int
	GatewayTimeout  time.Duration

	PayTabs GatewayConfig
	Paymob  GatewayConfig
	Stripe  GatewayConfig
}

// Load reads configuration from the environment. A .env file is honored for
// local runs; in deployment the variables come from the orchestrator.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8084"),
		Currency:        getEnv("CURRENCY", "USD"),
		CacheBackend:    getEnv("SERVICE_CACHE_BACKEND", "memory"),
		CacheTTL:        getDuration("SERVICE_CACHE_TTL", 5*time.Minute),
		CacheMaxEntries: getInt("SERVICE_CACHE_MAX_ENTRIES", 1000),
		GatewayTimeout:  getDuration("GATEWAY_TIMEOUT", 15*time.Second),
		PayTabs: GatewayConfig{
			BaseURL:       getEnv("PAYTABS_BASE_URL", "https://secure.paytabs.com"),
			SecretKey:     os.Getenv("PAYTABS_SERVER_KEY"),
			WebhookSecret: os.Getenv("PAYTABS_WEBHOOK_SECRET"),
			ProfileID:     os.Getenv("PAYTABS_PROFILE_ID"),
		},
		Paymob: GatewayConfig{
			BaseURL:       getEnv("PAYMOB_BASE_URL", "https://accept.paymob.com"),
			SecretKey:     os.Getenv("PAYMOB_API_KEY"),
			WebhookSecret: os.Getenv("PAYMOB_HMAC_SECRET"),
			IframeID:      os.Getenv("PAYMOB_IFRAME_ID"),
			IntegrationID: os.Getenv("PAYMOB_INTEGRATION_ID"),
		},
		Stripe: GatewayConfig{
			BaseURL:       getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
