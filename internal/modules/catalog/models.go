package catalog

import "time"

// Catalog rows are read-only to the checkout core; catalog management
// owns the writes.

type Product struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	Title      string    `gorm:"type:varchar(255);not null"`
	PriceCents int       `gorm:"not null"`
	Currency   string    `gorm:"type:char(3);not null;default:'BRL'"`
	Stock      int       `gorm:"not null"`
	IsActive   bool      `gorm:"not null;default:true"`
	CreatedAt  time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt  time.Time `gorm:"type:datetime(3);not null"`
}

func (Product) TableName() string { return "products" }

// Variant price/stock override the product values when set.
type Variant struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	ProductID  string    `gorm:"type:char(36);not null;index:ix_product_variants_product_id"`
	SKU        string    `gorm:"type:varchar(64);not null"`
	PriceCents *int      `gorm:""`
	Stock      *int      `gorm:""`
	CreatedAt  time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt  time.Time `gorm:"type:datetime(3);not null"`
}

func (Variant) TableName() string { return "product_variants" }

const (
	MethodCard            = "card"
	MethodInstantTransfer = "instant_transfer" // PIX
)

type PaymentMethod struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(64);not null"`
	Type      string    `gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }

const (
	DiscountPercentage = "percentage"
	DiscountFlat       = "flat"
)

type Discount struct {
	ID               string    `gorm:"type:char(36);primaryKey"`
	Code             string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_discounts_code"`
	Type             string    `gorm:"type:varchar(16);not null"`
	Value            int       `gorm:"not null"` // percent points or cents, per Type
	MaxDiscountCents *int      `gorm:""`
	Active           bool      `gorm:"not null;default:true"`
	StartsAt         time.Time `gorm:"type:datetime(3);not null"`
	EndsAt           time.Time `gorm:"type:datetime(3);not null"`
	CreatedAt        time.Time `gorm:"type:datetime(3);not null"`
}

func (Discount) TableName() string { return "discounts" }

// ValidAt reports whether the coupon may be applied at t.
func (d Discount) ValidAt(t time.Time) bool {
	return d.Active && !t.Before(d.StartsAt) && !t.After(d.EndsAt)
}

type Address struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserID    string    `gorm:"type:char(36);not null;index:ix_addresses_user_id"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Address) TableName() string { return "addresses" }
