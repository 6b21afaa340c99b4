package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	BaseURL  string // public base URL, used to build the webhook callback
	DBDSN    string

	SessionCookie string
	SessionTTL    time.Duration

	// Payment processor
	ProviderName    string // "mercadopago" or "mock"
	ProviderBaseURL string
	ProviderToken   string
	WebhookSecret   string

	// Instant-transfer intents expire after this window.
	IntentTTL time.Duration

	// Notification sender (HTTP API, mailtrap-style)
	EmailAPIURL   string
	EmailAPIToken string
	EmailFrom     string
	EmailFromName string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		BaseURL:         envOr("BASE_URL", "http://localhost:8080"),
		DBDSN:           os.Getenv("DB_DSN"),
		SessionCookie:   envOr("SESSION_COOKIE", "lojinha_session"),
		SessionTTL:      envDurationOr("SESSION_TTL", 30*24*time.Hour),
		ProviderName:    envOr("PAYMENT_PROVIDER", "mock"),
		ProviderBaseURL: envOr("MP_BASE_URL", "https://api.mercadopago.com"),
		ProviderToken:   os.Getenv("MP_ACCESS_TOKEN"),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		IntentTTL:       envDurationOr("INTENT_TTL", 30*time.Minute),
		EmailAPIURL:     os.Getenv("EMAIL_API_URL"),
		EmailAPIToken:   os.Getenv("EMAIL_API_TOKEN"),
		EmailFrom:       envOr("EMAIL_FROM", "pedidos@lojinha.com"),
		EmailFromName:   envOr("EMAIL_FROM_NAME", "Lojinha"),
	}

	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("DB_DSN is required")
	}
	if cfg.ProviderName == "mercadopago" && cfg.ProviderToken == "" {
		return Config{}, fmt.Errorf("MP_ACCESS_TOKEN is required for the mercadopago provider")
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDurationOr(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
