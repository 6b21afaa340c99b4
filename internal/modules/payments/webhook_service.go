package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lojinha.com/app/internal/modules/orders"
	"lojinha.com/app/internal/shared/dbx"
)

// Every received processor event is persisted; unique(provider, event_id)
// deduplicates redeliveries.
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"type:datetime(3);not null"`
	ProcessedAt  *time.Time `gorm:"type:datetime(3)"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

// Notifier is the out-of-scope notification collaborator. Send failures are
// logged and never fail the confirmation.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, ord orders.Order, items []orders.OrderItem, payerEmail string) error
}

type WebhookService struct {
	db         *gorm.DB
	provider   Provider
	reconciler *Reconciler
	notifier   Notifier
	logger     *slog.Logger
}

func NewWebhookService(db *gorm.DB, p Provider, rec *Reconciler, n Notifier, logger *slog.Logger) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{db: db, provider: p, reconciler: rec, notifier: n, logger: logger}
}

// Handle processes one verified webhook delivery. Non-payment events and
// unknown transaction ids are acknowledged without error — the event may
// legitimately not belong to this system's records. An error return means
// the handler should answer 500 so the processor retries.
func (s *WebhookService) Handle(ctx context.Context, ev WebhookEvent, rawBody []byte) error {
	if ev.Type != "payment" {
		s.logger.InfoContext(ctx, "webhook event ignored",
			"provider", s.provider.Name(), "event_id", ev.EventID, "type", ev.Type)
		return nil
	}

	// Some processors push only a reference; resolve the status before
	// opening the transaction.
	status := ev.Status
	if status == "" {
		var err error
		status, err = s.provider.GetIntentStatus(ctx, ev.TransactionID)
		if err != nil {
			s.logger.ErrorContext(ctx, "webhook status fetch failed",
				"provider", s.provider.Name(), "transaction_id", ev.TransactionID, "err", err)
			return err
		}
	}

	var outcome ApplyOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		pe := ProviderEvent{
			ID:          uuid.NewString(),
			Provider:    s.provider.Name(),
			EventID:     ev.EventID,
			EventType:   ev.Type,
			PayloadJSON: datatypes.JSON(json.RawMessage(rawBody)),
			ReceivedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&pe).Error; err != nil {
			if !dbx.IsDuplicateKey(err) {
				return err
			}
			// A delivery can land before our own payment write commits.
			// That attempt keeps its event row with a process_error and no
			// processed_at; a redelivery of the same event id must reapply
			// against it, not dedupe, or the payment stays pending forever.
			var prior ProviderEvent
			if ferr := tx.WithContext(ctx).
				First(&prior, "provider = ? AND event_id = ?", s.provider.Name(), ev.EventID).Error; ferr != nil {
				return ferr
			}
			if prior.ProcessedAt != nil || prior.ProcessError == nil {
				s.logger.InfoContext(ctx, "webhook event deduplicated",
					"provider", s.provider.Name(), "event_id", ev.EventID)
				return nil
			}
			pe.ID = prior.ID
		}

		out, applyErr := s.reconciler.ApplyInTx(ctx, tx, ev.TransactionID, status, rawBody)
		if applyErr != nil {
			if errors.Is(applyErr, ErrPaymentNotFound) {
				// not ours (or not written yet); ack and let the processor
				// redeliver on its own schedule
				note := "no payment for transaction id " + ev.TransactionID
				s.logger.WarnContext(ctx, "webhook for unknown transaction",
					"provider", s.provider.Name(), "transaction_id", ev.TransactionID)
				return tx.WithContext(ctx).Model(&ProviderEvent{}).
					Where("id = ?", pe.ID).
					Updates(map[string]any{"process_error": note}).Error
			}
			return applyErr
		}
		outcome = out

		processed := time.Now()
		return tx.WithContext(ctx).Model(&ProviderEvent{}).
			Where("id = ?", pe.ID).
			Updates(map[string]any{"processed_at": &processed, "process_error": nil}).Error
	})
	if err != nil {
		return err
	}

	if outcome.PaymentChanged {
		s.logger.InfoContext(ctx, "payment reconciled",
			"provider", s.provider.Name(), "transaction_id", ev.TransactionID,
			"status", outcome.Payment.Status,
			"order_confirmed", outcome.OrderConfirmed, "order_cancelled", outcome.OrderCancelled)
	}

	if outcome.OrderConfirmed {
		s.sendConfirmation(ctx, outcome.Payment)
	}
	return nil
}

func (s *WebhookService) sendConfirmation(ctx context.Context, pay Payment) {
	if s.notifier == nil {
		return
	}
	ord, items, err := orders.NewRepo(s.db).GetWithItems(ctx, pay.OrderID)
	if err != nil {
		s.logger.ErrorContext(ctx, "confirmation lookup failed", "order_id", pay.OrderID, "err", err)
		return
	}
	if err := s.notifier.PaymentConfirmed(ctx, ord, items, pay.PayerEmail); err != nil {
		// fire-and-forget: never roll back or fail the confirmation
		s.logger.ErrorContext(ctx, "confirmation send failed", "order_id", ord.ID, "err", err)
	}
}
