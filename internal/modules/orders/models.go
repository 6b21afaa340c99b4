package orders

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	// Fulfillment statuses; transitions out of confirmed belong to the
	// fulfillment flows, not to this core.
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusRefunded   = "refunded"
)

// Amounts: TotalCents is the pre-discount sum, DiscountCents covers the
// payment-method discount plus any coupon, FinalCents = Total - Discount
// + Shipping. FinalCents always equals the post-discount item line totals
// minus the coupon.
type Order struct {
	ID          string `gorm:"type:char(36);primaryKey"`
	OrderNumber string `gorm:"type:varchar(32);not null;uniqueIndex:ux_orders_order_number"`
	Status      string `gorm:"type:varchar(32);not null"`

	TotalCents    int    `gorm:"not null"`
	DiscountCents int    `gorm:"not null"`
	ShippingCents int    `gorm:"not null"`
	FinalCents    int    `gorm:"not null"`
	Currency      string `gorm:"type:char(3);not null"`

	UserID            string  `gorm:"type:char(36);not null;index:ix_orders_user_id"`
	ShippingAddressID string  `gorm:"type:char(36);not null"`
	BillingAddressID  *string `gorm:"type:char(36)"`
	PaymentMethodID   string  `gorm:"type:char(36);not null"`
	DiscountID        *string `gorm:"type:char(36)"`

	CreatedAt   time.Time  `gorm:"type:datetime(3);not null"`
	UpdatedAt   time.Time  `gorm:"type:datetime(3);not null"`
	PaidAt      *time.Time `gorm:"type:datetime(3)"`
	ShippedAt   *time.Time `gorm:"type:datetime(3)"`
	DeliveredAt *time.Time `gorm:"type:datetime(3)"`
}

func (Order) TableName() string { return "orders" }

// Immutable once written.
type OrderItem struct {
	ID        string  `gorm:"type:char(36);primaryKey"`
	OrderID   string  `gorm:"type:char(36);not null;index:ix_order_items_order_id"`
	ProductID string  `gorm:"type:char(36);not null;index:ix_order_items_product_id"`
	VariantID *string `gorm:"type:char(36)"`

	Title    string `gorm:"type:varchar(255);not null"` // snapshot at purchase time
	Quantity int    `gorm:"not null"`

	UnitPriceCents      int     `gorm:"not null"` // pre-discount, authoritative
	FinalUnitPriceCents int     `gorm:"not null"` // after payment-method discount
	LineTotalCents      int     `gorm:"not null"` // FinalUnitPriceCents * Quantity
	DiscountApplied     float64 `gorm:"not null"` // fraction, e.g. 0.1

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (OrderItem) TableName() string { return "order_items" }
