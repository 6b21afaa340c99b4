package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lojinha.com/app/internal/modules/orders"
	"lojinha.com/app/internal/shared/dbx"
)

// Reconciler unifies webhook-pushed and poll-pulled processor status into
// one internal state. Both entry points share ApplyInTx; repeated delivery
// of the same event is a no-op apart from a metadata refresh.
type Reconciler struct {
	db       *gorm.DB
	provider Provider
	logger   *slog.Logger
}

func NewReconciler(db *gorm.DB, p Provider, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{db: db, provider: p, logger: logger}
}

type ApplyOutcome struct {
	Payment        Payment
	PaymentChanged bool
	// Set only when this call performed the pending->confirmed /
	// pending->cancelled order transition; gates the confirmation email.
	OrderConfirmed bool
	OrderCancelled bool
}

// ApplyInTx locks the payment row by transaction id, maps the external
// status and applies the payment and order transitions. A payment already in a terminal
// status keeps it; the raw payload is still stored as last-known metadata.
func (r *Reconciler) ApplyInTx(ctx context.Context, tx *gorm.DB, transactionID, externalStatus string, raw []byte) (ApplyOutcome, error) {
	var pay Payment
	if err := dbx.LockForUpdate(tx.WithContext(ctx)).
		First(&pay, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApplyOutcome{}, ErrPaymentNotFound
		}
		return ApplyOutcome{}, err
	}

	now := time.Now()
	mapped := MapExternalStatus(externalStatus)

	updates := map[string]any{"updated_at": now}
	if len(raw) > 0 {
		updates["metadata"] = datatypes.JSON(raw)
	}

	if IsTerminal(pay.Status) || mapped == StatusPending {
		// nothing to transition; keep the metadata fresh
		if err := tx.WithContext(ctx).Model(&Payment{}).
			Where("id = ?", pay.ID).Updates(updates).Error; err != nil {
			return ApplyOutcome{}, err
		}
		return ApplyOutcome{Payment: pay}, nil
	}

	updates["status"] = mapped
	if mapped == StatusFailed {
		updates["error_message"] = "processor reported: " + externalStatus
	}
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", pay.ID).Updates(updates).Error; err != nil {
		return ApplyOutcome{}, err
	}
	pay.Status = mapped
	out := ApplyOutcome{Payment: pay, PaymentChanged: true}

	switch mapped {
	case StatusCompleted:
		// conditional update: only the call that actually flips the order
		// reports OrderConfirmed, so the notification can never double-send
		q := tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ? AND status = ?", pay.OrderID, orders.StatusPending).
			Updates(map[string]any{
				"status":     orders.StatusConfirmed,
				"paid_at":    now,
				"updated_at": now,
			})
		if q.Error != nil {
			return ApplyOutcome{}, q.Error
		}
		out.OrderConfirmed = q.RowsAffected == 1

	case StatusFailed:
		q := tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ? AND status = ?", pay.OrderID, orders.StatusPending).
			Updates(map[string]any{
				"status":     orders.StatusCancelled,
				"updated_at": now,
			})
		if q.Error != nil {
			return ApplyOutcome{}, q.Error
		}
		out.OrderCancelled = q.RowsAffected == 1

	case StatusRefunded:
		// refund cascade to the order belongs to the refund flows
	}

	return out, nil
}

type PollResult struct {
	Status      string // pending|approved|rejected
	LastUpdated time.Time
}

// Poll is the read-mostly client convenience: it asks the processor and
// maps the answer without persisting. When the processor is unreachable it
// falls back to the locally stored status instead of failing the caller.
func (r *Reconciler) Poll(ctx context.Context, transactionID string) (PollResult, error) {
	var pay Payment
	if err := r.db.WithContext(ctx).First(&pay, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PollResult{}, ErrPaymentNotFound
		}
		return PollResult{}, err
	}

	ext, err := r.provider.GetIntentStatus(ctx, transactionID)
	if err != nil {
		r.logger.WarnContext(ctx, "status fetch failed, serving last known",
			"transaction_id", transactionID, "payment_status", pay.Status, "err", err)
		return PollResult{Status: ClientStatus(pay.Status), LastUpdated: pay.UpdatedAt}, nil
	}

	return PollResult{
		Status:      ClientStatus(MapExternalStatus(ext)),
		LastUpdated: pay.UpdatedAt,
	}, nil
}
