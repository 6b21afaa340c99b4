package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lojinha.com/app/internal/modules/checkout"
	"lojinha.com/app/internal/modules/orders"
	"lojinha.com/app/internal/shared/dbx"
	"lojinha.com/app/internal/storage"
)

// CheckoutService turns a validated cart into a priced order with a pending
// payment and an external intent. Order and Payment are written in one
// transaction; the processor call happens outside it, and a second
// transaction either links the external reference or compensates.
type CheckoutService struct {
	db       *gorm.DB
	orders   *orders.Service
	provider Provider
	store    storage.Storage // optional; persists the instant-transfer QR image
	logger   *slog.Logger

	BaseURL   string
	IntentTTL time.Duration
}

func NewCheckoutService(db *gorm.DB, osvc *orders.Service, p Provider, store storage.Storage, logger *slog.Logger, baseURL string, intentTTL time.Duration) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	if intentTTL <= 0 {
		intentTTL = 30 * time.Minute
	}
	return &CheckoutService{
		db: db, orders: osvc, provider: p, store: store, logger: logger,
		BaseURL: baseURL, IntentTTL: intentTTL,
	}
}

type CheckoutItem struct {
	ProductID         string
	VariantID         *string
	ClaimedPriceCents int
	Quantity          int
}

type CheckoutInput struct {
	UserID            string
	PayerEmail        string
	ShippingAddressID string
	BillingAddressID  *string
	PaymentMethodID   string
	Items             []CheckoutItem
	ClaimedTotalCents int
	DiscountCode      string
}

type CheckoutResult struct {
	Order   orders.Order
	Payment Payment

	QRPayload     string
	QRImageBase64 string
	QRImageURL    string
	InitPoint     string
	ExpiresAt     time.Time
}

// Create runs the full initiation path: price/stock validation, order + pending
// payment in one tx, intent creation, then linkage or compensation.
func (s *CheckoutService) Create(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	if len(in.Items) == 0 {
		return CheckoutResult{}, ErrEmptyCart
	}

	// Server-side price/stock validation against authoritative rows. The
	// assembler re-reads inside its own transaction; this pass exists to
	// give the client the structured per-item reasons.
	claimed := make([]checkout.ClaimedItem, len(in.Items))
	for i, it := range in.Items {
		claimed[i] = checkout.ClaimedItem{
			ProductID:  it.ProductID,
			PriceCents: it.ClaimedPriceCents,
			Quantity:   it.Quantity,
		}
	}
	vres, err := checkout.ValidateItems(ctx, s.db, claimed, in.ClaimedTotalCents)
	if err != nil {
		return CheckoutResult{}, err
	}
	if !vres.IsValid {
		return CheckoutResult{}, &ValidationFailedError{Result: vres}
	}

	// Resolve the method type before writing anything; the assembler
	// re-checks the method row inside its transaction.
	method, err := s.methodType(ctx, in.PaymentMethodID)
	if err != nil {
		return CheckoutResult{}, err
	}

	// Phase 1: order + pending payment, one transaction.
	ord, items, pay, err := s.createOrderAndPayment(ctx, in, nil)
	if err != nil {
		return CheckoutResult{}, err
	}

	expiresAt := time.Now().Add(s.IntentTTL)

	// Phase 2: external intent, outside any transaction.
	intent, perr := s.provider.CreateIntent(ctx, CreateIntentRequest{
		Method:            method,
		AmountCents:       ord.FinalCents,
		Currency:          ord.Currency,
		Description:       "Pedido " + ord.OrderNumber,
		PayerEmail:        in.PayerEmail,
		NotificationURL:   s.BaseURL + "/webhooks/" + s.provider.Name(),
		ExternalReference: pay.ID,
		ExpiresAt:         expiresAt,
		IdempotencyKey:    pay.ID,
	})
	if perr != nil {
		// The processor holds nothing yet; compensation is purely local.
		if cerr := s.cancelCheckout(ctx, ord, items, pay, perr); cerr != nil {
			s.logger.ErrorContext(ctx, "checkout compensation failed",
				"order_id", ord.ID, "payment_id", pay.ID, "err", cerr)
		}
		return CheckoutResult{}, perr
	}

	qrURL := s.persistQRImage(ctx, pay.ID, intent.QRImageBase64)

	// Phase 3: link the external reference.
	if err := s.linkIntent(ctx, &pay, intent, qrURL, expiresAt); err != nil {
		return CheckoutResult{}, err
	}

	s.logger.InfoContext(ctx, "checkout created",
		"order_id", ord.ID, "order_number", ord.OrderNumber,
		"payment_id", pay.ID, "transaction_id", intent.ExternalID,
		"provider", s.provider.Name(), "method", method)

	return CheckoutResult{
		Order:         ord,
		Payment:       pay,
		QRPayload:     intent.QRPayload,
		QRImageBase64: intent.QRImageBase64,
		QRImageURL:    qrURL,
		InitPoint:     intent.InitPoint,
		ExpiresAt:     expiresAt,
	}, nil
}

// IntentRef is an already-created external intent (the legacy single-item
// fast path creates the intent before the order).
type IntentRef struct {
	TransactionID string
	RawStatus     string
	ExpiresAt     time.Time
}

// CreateWithPrecreatedIntent writes Order and Payment referencing an
// existing external intent in one transaction. No processor call is made.
func (s *CheckoutService) CreateWithPrecreatedIntent(ctx context.Context, in CheckoutInput, ref IntentRef) (CheckoutResult, error) {
	if len(in.Items) == 0 {
		return CheckoutResult{}, ErrEmptyCart
	}
	ord, _, pay, err := s.createOrderAndPayment(ctx, in, &ref)
	if err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{Order: ord, Payment: pay, ExpiresAt: ref.ExpiresAt}, nil
}

func (s *CheckoutService) createOrderAndPayment(ctx context.Context, in CheckoutInput, ref *IntentRef) (orders.Order, []orders.OrderItem, Payment, error) {
	orderItems := make([]orders.ItemInput, len(in.Items))
	for i, it := range in.Items {
		orderItems[i] = orders.ItemInput{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity}
	}

	var (
		ord   orders.Order
		items []orders.OrderItem
		pay   Payment
	)
	err := dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var txErr error
		ord, items, txErr = s.orders.CreateOrderInTx(ctx, tx, orders.CreateOrderInput{
			UserID:            in.UserID,
			ShippingAddressID: in.ShippingAddressID,
			BillingAddressID:  in.BillingAddressID,
			PaymentMethodID:   in.PaymentMethodID,
			Items:             orderItems,
			DiscountCode:      in.DiscountCode,
		})
		if txErr != nil {
			return txErr
		}

		now := time.Now()
		pay = Payment{
			ID:              uuid.NewString(),
			OrderID:         ord.ID,
			UserID:          in.UserID,
			ProductID:       items[0].ProductID,
			PaymentMethodID: in.PaymentMethodID,
			PayerEmail:      in.PayerEmail,
			AmountCents:     ord.FinalCents,
			Currency:        ord.Currency,
			Status:          StatusPending,
			Provider:        s.provider.Name(),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if ref != nil {
			pay.TransactionID = &ref.TransactionID
			if !ref.ExpiresAt.IsZero() {
				exp := ref.ExpiresAt
				pay.ExpiresAt = &exp
			}
		}
		return tx.WithContext(ctx).Create(&pay).Error
	})
	if err != nil {
		return orders.Order{}, nil, Payment{}, err
	}
	return ord, items, pay, nil
}

func (s *CheckoutService) linkIntent(ctx context.Context, pay *Payment, intent CreateIntentResponse, qrURL string, expiresAt time.Time) error {
	meta, _ := json.Marshal(map[string]any{
		"external_id":  intent.ExternalID,
		"raw_status":   intent.Status,
		"qr_image_url": qrURL,
		"init_point":   intent.InitPoint,
	})

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.WithContext(ctx).Model(&Payment{}).
			Where("id = ?", pay.ID).
			Updates(map[string]any{
				"transaction_id": intent.ExternalID,
				"metadata":       datatypes.JSON(meta),
				"expires_at":     expiresAt,
				"updated_at":     now,
			}).Error; err != nil {
			return err
		}
		pay.TransactionID = &intent.ExternalID
		pay.ExpiresAt = &expiresAt
		pay.Metadata = datatypes.JSON(meta)
		return nil
	})
}

// cancelCheckout marks the payment failed, cancels the order and puts the
// stock back. Runs when intent creation fails after phase 1 committed.
func (s *CheckoutService) cancelCheckout(ctx context.Context, ord orders.Order, items []orders.OrderItem, pay Payment, cause error) error {
	return dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		now := time.Now()
		msg := truncate(cause.Error(), 250)

		if err := tx.WithContext(ctx).Model(&Payment{}).
			Where("id = ?", pay.ID).
			Updates(map[string]any{
				"status":        StatusFailed,
				"error_message": msg,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ? AND status = ?", ord.ID, orders.StatusPending).
			Updates(map[string]any{
				"status":     orders.StatusCancelled,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		lines := make([]checkout.StockLine, len(items))
		for i, it := range items {
			lines[i] = checkout.StockLine{ProductID: it.ProductID, Qty: it.Quantity}
			if it.VariantID != nil {
				lines[i].VariantID = *it.VariantID
			}
		}
		return checkout.ReturnStockInTx(ctx, tx, lines)
	})
}

func (s *CheckoutService) persistQRImage(ctx context.Context, paymentID, b64 string) string {
	if s.store == nil || b64 == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		s.logger.WarnContext(ctx, "qr image decode failed", "payment_id", paymentID, "err", err)
		return ""
	}
	res, err := s.store.Put(ctx, bytes.NewReader(raw), storage.PutInput{
		Filename:    paymentID + ".png",
		ContentType: "image/png",
		Size:        int64(len(raw)),
	})
	if err != nil {
		// the base64 payload still reaches the client; losing the copy is not fatal
		s.logger.WarnContext(ctx, "qr image store failed", "payment_id", paymentID, "err", err)
		return ""
	}
	return res.URL
}

func (s *CheckoutService) methodType(ctx context.Context, paymentMethodID string) (string, error) {
	var t string
	err := s.db.WithContext(ctx).Table("payment_methods").
		Select("type").Where("id = ?", paymentMethodID).Scan(&t).Error
	return t, err
}
