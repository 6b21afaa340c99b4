package payments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lojinha.com/app/internal/modules/catalog"
	"lojinha.com/app/internal/modules/orders"
	"lojinha.com/app/internal/storage"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(openTestSQLite(), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // in-memory db lives on a single connection
	require.NoError(t, db.AutoMigrate(
		&catalog.Product{}, &catalog.Variant{}, &catalog.PaymentMethod{},
		&catalog.Discount{}, &catalog.Address{},
		&orders.Order{}, &orders.OrderItem{},
		&Payment{}, &ProviderEvent{},
	))
	return db
}

type fixture struct {
	db       *gorm.DB
	provider *MockProvider
	svc      *CheckoutService

	userID    string
	addressID string
	pixID     string
	cardID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	f := &fixture{
		db:        db,
		provider:  NewMockProvider("test-secret"),
		userID:    uuid.NewString(),
		addressID: uuid.NewString(),
		pixID:     uuid.NewString(),
		cardID:    uuid.NewString(),
	}
	f.svc = NewCheckoutService(db, orders.NewService(db, nil), f.provider,
		storage.NewLocal(t.TempDir(), "/qr"), nil, "http://localhost:8080", 30*time.Minute)

	require.NoError(t, db.Create(&catalog.Address{ID: f.addressID, UserID: f.userID, CreatedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&catalog.PaymentMethod{
		ID: f.pixID, Name: "PIX", Type: catalog.MethodInstantTransfer, CreatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&catalog.PaymentMethod{
		ID: f.cardID, Name: "Cartão", Type: catalog.MethodCard, CreatedAt: time.Now(),
	}).Error)

	return f
}

func (f *fixture) seedProduct(t *testing.T, priceCents, stock int) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, f.db.Create(&catalog.Product{
		ID: id, Title: "Produto " + id[:8], PriceCents: priceCents, Currency: "BRL",
		Stock: stock, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)
	return id
}

func (f *fixture) productStock(t *testing.T, id string) int {
	t.Helper()
	var p catalog.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func (f *fixture) checkoutInput(methodID, productID string, priceCents, qty int) CheckoutInput {
	return CheckoutInput{
		UserID:            f.userID,
		PayerEmail:        "cliente@example.com",
		ShippingAddressID: f.addressID,
		PaymentMethodID:   methodID,
		Items: []CheckoutItem{{
			ProductID:         productID,
			ClaimedPriceCents: priceCents,
			Quantity:          qty,
		}},
		ClaimedTotalCents: priceCents * qty,
	}
}

func (f *fixture) reloadPayment(t *testing.T, id string) Payment {
	t.Helper()
	var pay Payment
	require.NoError(t, f.db.First(&pay, "id = ?", id).Error)
	return pay
}

func (f *fixture) reloadOrder(t *testing.T, id string) orders.Order {
	t.Helper()
	var ord orders.Order
	require.NoError(t, f.db.First(&ord, "id = ?", id).Error)
	return ord
}

// seedPaidCheckout inserts a pending order + pending payment already linked
// to a transaction id, bypassing the provider.
func (f *fixture) seedPendingPayment(t *testing.T, transactionID string) (orders.Order, Payment) {
	t.Helper()
	now := time.Now()

	ord := orders.Order{
		ID:                uuid.NewString(),
		OrderNumber:       orders.NewOrderNumber(now),
		Status:            orders.StatusPending,
		TotalCents:        10000,
		DiscountCents:     1000,
		FinalCents:        9000,
		Currency:          "BRL",
		UserID:            f.userID,
		ShippingAddressID: f.addressID,
		PaymentMethodID:   f.pixID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.db.Create(&ord).Error)

	item := orders.OrderItem{
		ID:                  uuid.NewString(),
		OrderID:             ord.ID,
		ProductID:           uuid.NewString(),
		Title:               "Produto teste",
		Quantity:            1,
		UnitPriceCents:      10000,
		FinalUnitPriceCents: 9000,
		LineTotalCents:      9000,
		DiscountApplied:     0.10,
		CreatedAt:           now,
	}
	require.NoError(t, f.db.Create(&item).Error)

	pay := Payment{
		ID:              uuid.NewString(),
		OrderID:         ord.ID,
		UserID:          f.userID,
		ProductID:       item.ProductID,
		PaymentMethodID: f.pixID,
		PayerEmail:      "cliente@example.com",
		AmountCents:     9000,
		Currency:        "BRL",
		Status:          StatusPending,
		Provider:        f.provider.Name(),
		TransactionID:   &transactionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.db.Create(&pay).Error)

	return ord, pay
}
