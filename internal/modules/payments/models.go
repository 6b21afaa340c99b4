package payments

import (
	"time"

	"gorm.io/datatypes"
)

// TransactionID is the processor's reference and the join key for both the
// webhook and the poll path. Unique; never reused across two rows. Nullable
// because the row is written before the intent exists on the preferred path.
type Payment struct {
	ID              string  `gorm:"type:char(36);primaryKey"`
	OrderID         string  `gorm:"type:char(36);not null;index:ix_payments_order_id"`
	UserID          string  `gorm:"type:char(36);not null;index:ix_payments_user_id"`
	ProductID       string  `gorm:"type:char(36);not null"` // first item, informational
	PaymentMethodID string  `gorm:"type:char(36);not null"`
	PayerEmail      string  `gorm:"type:varchar(255);not null"`
	AmountCents     int     `gorm:"not null"`
	Currency        string  `gorm:"type:char(3);not null"`
	Status          string  `gorm:"type:varchar(32);not null"`
	Provider        string  `gorm:"type:varchar(64);not null"`
	TransactionID   *string `gorm:"type:varchar(128);uniqueIndex:ux_payments_transaction_id"`

	// last-known raw processor payload
	Metadata     datatypes.JSON `gorm:"type:json"`
	ErrorMessage *string        `gorm:"type:varchar(255)"`

	ExpiresAt *time.Time `gorm:"type:datetime(3)"`
	CreatedAt time.Time  `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time  `gorm:"type:datetime(3);not null"`
}

func (Payment) TableName() string { return "payments" }
