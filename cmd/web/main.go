package main

import (
	"context"
	"log"
	"os"
	"strings"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"lojinha.com/app/internal/config"
	apphttp "lojinha.com/app/internal/http"
	"lojinha.com/app/internal/modules/email"
	"lojinha.com/app/internal/modules/payments"
	"lojinha.com/app/internal/storage"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	var provider payments.Provider
	switch cfg.ProviderName {
	case "mercadopago":
		provider = payments.NewMercadoPago(cfg.ProviderBaseURL, cfg.ProviderToken, cfg.WebhookSecret)
	default:
		provider = payments.NewMockProvider(cfg.WebhookSecret)
	}

	store, err := storage.FromEnv(context.Background())
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	logger.Info("storage ready", "driver", store.Driver)

	var sender email.Sender
	if cfg.EmailAPIURL != "" && cfg.EmailAPIToken != "" {
		sender = email.NewAPIProvider(cfg.EmailAPIURL, cfg.EmailAPIToken, cfg.EmailFrom, cfg.EmailFromName)
	} else {
		logger.Warn("email sender not configured, confirmations will be dropped")
		sender = &email.MockSender{}
	}

	r := apphttp.NewRouter(apphttp.RouterCfg{
		Logger:        logger,
		DB:            db,
		Provider:      provider,
		Storage:       store.Storage,
		Notifier:      email.NewNotifier(sender),
		BaseURL:       cfg.BaseURL,
		SessionCookie: cfg.SessionCookie,
		SessionTTL:    cfg.SessionTTL,
		IntentTTL:     cfg.IntentTTL,
		CookieSecure:  strings.HasPrefix(cfg.BaseURL, "https://"),
	})

	logger.Info("listening", "addr", cfg.HTTPAddr, "provider", provider.Name())
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
