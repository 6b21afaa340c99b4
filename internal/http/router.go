package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"lojinha.com/app/internal/http/handlers"
	"lojinha.com/app/internal/http/middleware"
	"lojinha.com/app/internal/modules/orders"
	"lojinha.com/app/internal/modules/payments"
	"lojinha.com/app/internal/storage"
)

type RouterCfg struct {
	Logger   *slog.Logger
	DB       *gorm.DB
	Provider payments.Provider
	Storage  storage.Storage
	Notifier payments.Notifier

	BaseURL       string
	SessionCookie string
	SessionTTL    time.Duration
	IntentTTL     time.Duration
	CookieSecure  bool
}

func NewRouter(cfg RouterCfg) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.ErrorHandler(cfg.Logger))
	r.Use(middleware.SessionMiddleware(middleware.SessionCfg{
		DB:         cfg.DB,
		CookieName: cfg.SessionCookie,
		Secure:     cfg.CookieSecure,
		TTL:        cfg.SessionTTL,
	}))

	orderSvc := orders.NewService(cfg.DB, cfg.Logger)
	orderRepo := orders.NewRepo(cfg.DB)
	checkoutSvc := payments.NewCheckoutService(
		cfg.DB, orderSvc, cfg.Provider, cfg.Storage, cfg.Logger, cfg.BaseURL, cfg.IntentTTL)
	reconciler := payments.NewReconciler(cfg.DB, cfg.Provider, cfg.Logger)
	webhookSvc := payments.NewWebhookService(cfg.DB, cfg.Provider, reconciler, cfg.Notifier, cfg.Logger)

	checkoutH := handlers.NewCheckoutHandler(cfg.DB, checkoutSvc)
	statusH := handlers.NewPaymentStatusHandler(reconciler)
	ordersH := handlers.NewOrdersHandler(orderRepo)
	webhookH := handlers.NewWebhookHandler(cfg.Logger, cfg.Provider, webhookSvc)

	api := r.Group("/api", middleware.RequireAuth())
	{
		api.POST("/checkout/instant-transfer", checkoutH.InstantTransfer)
		api.POST("/checkout/card", checkoutH.Card)
		api.GET("/payments/:external_id/status", statusH.Get)
		api.GET("/orders", ordersH.List)
		api.GET("/orders/:number", ordersH.Get)
	}

	// Processor callbacks authenticate via signature, not session.
	r.POST("/webhooks/:provider", webhookH.Handle)

	return r
}
