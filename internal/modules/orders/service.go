package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lojinha.com/app/internal/modules/catalog"
	"lojinha.com/app/internal/modules/checkout"
	"lojinha.com/app/internal/shared/dbx"
)

// Instant-transfer (PIX) orders get a flat 10% price incentive per item.
const instantTransferDiscount = 0.10

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

type ItemInput struct {
	ProductID string
	VariantID *string
	Quantity  int
}

type CreateOrderInput struct {
	UserID            string
	ShippingAddressID string
	BillingAddressID  *string
	PaymentMethodID   string
	Items             []ItemInput
	DiscountCode      string
}

// CreateOrder assembles an order in a single transaction: authoritative
// re-read with row locks, payment-method discount, optional coupon, order +
// item writes, guarded stock decrement. Any failure rolls the whole thing
// back; no partial order, no stock mutation.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, []OrderItem, error) {
	var (
		ord   Order
		items []OrderItem
	)
	err := dbx.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var txErr error
		ord, items, txErr = s.CreateOrderInTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return Order{}, nil, err
	}
	s.logger.InfoContext(ctx, "order created",
		"order_id", ord.ID, "order_number", ord.OrderNumber,
		"final_cents", ord.FinalCents, "items", len(items))
	return ord, items, nil
}

// CreateOrderInTx is the assembler body. Callers that need extra rows in the
// same transaction (the checkout payment flow writes the Payment row next)
// own the surrounding tx.
func (s *Service) CreateOrderInTx(ctx context.Context, tx *gorm.DB, in CreateOrderInput) (Order, []OrderItem, error) {
	if len(in.Items) == 0 {
		return Order{}, nil, ErrNoItems
	}

	repo := catalog.NewRepo(tx)

	if ok, err := repo.AddressExists(ctx, in.ShippingAddressID); err != nil {
		return Order{}, nil, err
	} else if !ok {
		return Order{}, nil, ErrAddressUnknown
	}

	method, err := repo.PaymentMethodByID(ctx, in.PaymentMethodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, nil, ErrPaymentMethodUnknown
		}
		return Order{}, nil, err
	}
	isInstantTransfer := method.Type == catalog.MethodInstantTransfer

	products, variants, err := fetchCatalogForUpdate(ctx, tx, in.Items)
	if err != nil {
		return Order{}, nil, err
	}

	now := time.Now()
	orderID := uuid.NewString()
	currency := ""

	var (
		totalCents int
		itemsFinal int
		orderItems []OrderItem
		stockLines []checkout.StockLine
	)

	for _, it := range in.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}

		p, ok := products[it.ProductID]
		if !ok {
			return Order{}, nil, ErrProductUnavailable
		}
		if currency == "" {
			currency = p.Currency
		}

		unitCents := p.PriceCents
		line := checkout.StockLine{ProductID: p.ID, Qty: qty}

		if it.VariantID != nil {
			v, ok := variants[*it.VariantID]
			if !ok || v.ProductID != p.ID {
				return Order{}, nil, ErrVariantUnknown
			}
			if v.PriceCents != nil {
				unitCents = *v.PriceCents
			}
			if v.Stock != nil {
				line.VariantID = v.ID // variant row tracks the stock
			}
		}

		finalUnit := unitCents
		applied := 0.0
		if isInstantTransfer {
			finalUnit = discountedCents(unitCents)
			applied = instantTransferDiscount
		}

		totalCents += unitCents * qty
		itemsFinal += finalUnit * qty

		orderItems = append(orderItems, OrderItem{
			ID:                  uuid.NewString(),
			OrderID:             orderID,
			ProductID:           p.ID,
			VariantID:           it.VariantID,
			Title:               p.Title,
			Quantity:            qty,
			UnitPriceCents:      unitCents,
			FinalUnitPriceCents: finalUnit,
			LineTotalCents:      finalUnit * qty,
			DiscountApplied:     applied,
			CreatedAt:           now,
		})
		stockLines = append(stockLines, line)
	}

	var discountID *string
	couponCents := 0
	if code := strings.TrimSpace(in.DiscountCode); code != "" {
		d, err := repo.DiscountByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Order{}, nil, ErrDiscountInvalid
			}
			return Order{}, nil, err
		}
		if !d.ValidAt(now) {
			return Order{}, nil, ErrDiscountInvalid
		}
		couponCents = couponCut(d, itemsFinal)
		discountID = &d.ID
	}

	finalCents := itemsFinal - couponCents
	ord := Order{
		ID:                orderID,
		OrderNumber:       NewOrderNumber(now),
		Status:            StatusPending,
		TotalCents:        totalCents,
		DiscountCents:     (totalCents - itemsFinal) + couponCents,
		ShippingCents:     0,
		FinalCents:        finalCents,
		Currency:          currency,
		UserID:            in.UserID,
		ShippingAddressID: in.ShippingAddressID,
		BillingAddressID:  in.BillingAddressID,
		PaymentMethodID:   in.PaymentMethodID,
		DiscountID:        discountID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := tx.WithContext(ctx).Create(&ord).Error; err != nil {
		return Order{}, nil, err
	}
	if err := tx.WithContext(ctx).Create(&orderItems).Error; err != nil {
		return Order{}, nil, err
	}

	// The guarded decrement aborts the tx if a concurrent checkout won the
	// race between the locked read above and this write.
	if err := checkout.DeductStockInTx(ctx, tx, stockLines); err != nil {
		return Order{}, nil, err
	}

	return ord, orderItems, nil
}

func fetchCatalogForUpdate(ctx context.Context, tx *gorm.DB, items []ItemInput) (map[string]catalog.Product, map[string]catalog.Variant, error) {
	productIDs := make([]string, 0, len(items))
	var variantIDs []string
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
		if it.VariantID != nil {
			variantIDs = append(variantIDs, *it.VariantID)
		}
	}

	products := map[string]catalog.Product{}
	var prows []catalog.Product
	if err := dbx.LockForUpdate(tx.WithContext(ctx)).
		Where("id IN ? AND is_active = ?", productIDs, true).
		Order("id ASC").
		Find(&prows).Error; err != nil {
		return nil, nil, err
	}
	for _, p := range prows {
		products[p.ID] = p
	}

	variants := map[string]catalog.Variant{}
	if len(variantIDs) > 0 {
		var vrows []catalog.Variant
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			Where("id IN ?", variantIDs).
			Order("id ASC").
			Find(&vrows).Error; err != nil {
			return nil, nil, err
		}
		for _, v := range vrows {
			variants[v.ID] = v
		}
	}

	return products, variants, nil
}

// half-up rounding on the discounted unit price
func discountedCents(cents int) int {
	return (cents*9 + 5) / 10
}

func couponCut(d catalog.Discount, finalCents int) int {
	var cut int
	switch d.Type {
	case catalog.DiscountPercentage:
		cut = finalCents * d.Value / 100
		if d.MaxDiscountCents != nil && cut > *d.MaxDiscountCents {
			cut = *d.MaxDiscountCents
		}
	case catalog.DiscountFlat:
		cut = d.Value
	}
	if cut > finalCents {
		cut = finalCents
	}
	if cut < 0 {
		cut = 0
	}
	return cut
}
