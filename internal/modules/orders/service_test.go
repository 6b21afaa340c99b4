package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lojinha.com/app/internal/modules/catalog"
	"lojinha.com/app/internal/modules/checkout"
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
		&Order{}, &OrderItem{},
	))
	return db
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
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
		svc:       NewService(db, nil),
		userID:    uuid.NewString(),
		addressID: uuid.NewString(),
		pixID:     uuid.NewString(),
		cardID:    uuid.NewString(),
	}

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

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&Order{}).Count(&n).Error)
	return n
}

func (f *fixture) input(paymentMethodID string, items ...ItemInput) CreateOrderInput {
	return CreateOrderInput{
		UserID:            f.userID,
		ShippingAddressID: f.addressID,
		PaymentMethodID:   paymentMethodID,
		Items:             items,
	}
}

func TestCreateOrder_InstantTransferDiscount(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 10000, 5)

	ord, items, err := f.svc.CreateOrder(context.Background(),
		f.input(f.pixID, ItemInput{ProductID: pid, Quantity: 1}))
	require.NoError(t, err)

	// R$ 100,00 at 10% off: pay 90, record 10 of discount
	assert.Equal(t, 10000, ord.TotalCents)
	assert.Equal(t, 1000, ord.DiscountCents)
	assert.Equal(t, 9000, ord.FinalCents)
	assert.Equal(t, StatusPending, ord.Status)
	assert.Equal(t, "BRL", ord.Currency)
	assert.NotEmpty(t, ord.OrderNumber)

	require.Len(t, items, 1)
	assert.Equal(t, 10000, items[0].UnitPriceCents)
	assert.Equal(t, 9000, items[0].FinalUnitPriceCents)
	assert.Equal(t, 9000, items[0].LineTotalCents)
	assert.InDelta(t, 0.10, items[0].DiscountApplied, 1e-9)

	assert.Equal(t, 4, f.productStock(t, pid))
}

func TestCreateOrder_DiscountRoundsHalfUp(t *testing.T) {
	f := newFixture(t)
	// 99 cents: exact 10% off is 89.1, rounds to 89
	pid := f.seedProduct(t, 99, 10)

	ord, items, err := f.svc.CreateOrder(context.Background(),
		f.input(f.pixID, ItemInput{ProductID: pid, Quantity: 3}))
	require.NoError(t, err)

	assert.Equal(t, 89, items[0].FinalUnitPriceCents)
	assert.Equal(t, 89*3, ord.FinalCents)
	assert.Equal(t, 99*3, ord.TotalCents)
	assert.Equal(t, ord.TotalCents-ord.FinalCents, ord.DiscountCents)
}

func TestCreateOrder_CardHasNoDiscount(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 10000, 5)

	ord, items, err := f.svc.CreateOrder(context.Background(),
		f.input(f.cardID, ItemInput{ProductID: pid, Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, 20000, ord.TotalCents)
	assert.Equal(t, 0, ord.DiscountCents)
	assert.Equal(t, 20000, ord.FinalCents)
	assert.Equal(t, 10000, items[0].FinalUnitPriceCents)
	assert.Zero(t, items[0].DiscountApplied)
}

func TestCreateOrder_VariantOverridesPriceAndStock(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 10000, 5)

	vprice := 12000
	vstock := 2
	vid := uuid.NewString()
	require.NoError(t, f.db.Create(&catalog.Variant{
		ID: vid, ProductID: pid, SKU: "SKU-1", PriceCents: &vprice, Stock: &vstock,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)

	ord, items, err := f.svc.CreateOrder(context.Background(),
		f.input(f.cardID, ItemInput{ProductID: pid, VariantID: &vid, Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, 24000, ord.FinalCents)
	require.NotNil(t, items[0].VariantID)
	assert.Equal(t, vid, *items[0].VariantID)

	// variant row carries the stock; product row untouched
	var v catalog.Variant
	require.NoError(t, f.db.First(&v, "id = ?", vid).Error)
	require.NotNil(t, v.Stock)
	assert.Equal(t, 0, *v.Stock)
	assert.Equal(t, 5, f.productStock(t, pid))
}

func TestCreateOrder_StockExhaustion(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 5000, 3)

	_, _, err := f.svc.CreateOrder(context.Background(),
		f.input(f.cardID, ItemInput{ProductID: pid, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, 1, f.productStock(t, pid))

	_, _, err = f.svc.CreateOrder(context.Background(),
		f.input(f.cardID, ItemInput{ProductID: pid, Quantity: 2}))

	var oos *checkout.OutOfStockError
	require.ErrorAs(t, err, &oos)
	require.Len(t, oos.Items, 1)
	assert.Equal(t, pid, oos.Items[0].ProductID)
	assert.Equal(t, 2, oos.Items[0].Requested)
	assert.Equal(t, 1, oos.Items[0].Available)

	// the failed attempt left nothing behind
	assert.Equal(t, 1, f.productStock(t, pid))
	assert.Equal(t, int64(1), f.orderCount(t))
}

func TestCreateOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 10000, 3)

	const buyers = 6
	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.CreateOrder(context.Background(),
				f.input(f.pixID, ItemInput{ProductID: pid, Quantity: 1}))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		var oos *checkout.OutOfStockError
		require.ErrorAs(t, err, &oos)
		lost++
	}

	// exactly stock-many winners, everyone else told the truth
	assert.Equal(t, 3, won)
	assert.Equal(t, 3, lost)
	assert.Equal(t, 0, f.productStock(t, pid))
	assert.Equal(t, int64(3), f.orderCount(t))
}

func TestCreateOrder_InvalidDiscountRollsBack(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 5000, 3)

	in := f.input(f.pixID, ItemInput{ProductID: pid, Quantity: 1})
	in.DiscountCode = "NAOEXISTE"

	_, _, err := f.svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrDiscountInvalid)

	assert.Equal(t, 3, f.productStock(t, pid))
	assert.Equal(t, int64(0), f.orderCount(t))
}

func TestCreateOrder_ExpiredDiscountRejected(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 5000, 3)

	require.NoError(t, f.db.Create(&catalog.Discount{
		ID: uuid.NewString(), Code: "VELHO", Type: catalog.DiscountPercentage, Value: 10,
		Active:   true,
		StartsAt: time.Now().Add(-48 * time.Hour),
		EndsAt:   time.Now().Add(-24 * time.Hour),
	}).Error)

	in := f.input(f.cardID, ItemInput{ProductID: pid, Quantity: 1})
	in.DiscountCode = "VELHO"

	_, _, err := f.svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrDiscountInvalid)
}

func TestCreateOrder_CouponPercentageCapped(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 10000, 5)

	maxCut := 500
	require.NoError(t, f.db.Create(&catalog.Discount{
		ID: uuid.NewString(), Code: "DEZ", Type: catalog.DiscountPercentage, Value: 10,
		MaxDiscountCents: &maxCut, Active: true,
		StartsAt: time.Now().Add(-time.Hour), EndsAt: time.Now().Add(time.Hour),
	}).Error)

	in := f.input(f.cardID, ItemInput{ProductID: pid, Quantity: 1})
	in.DiscountCode = "DEZ"

	ord, _, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	// 10% of 10000 is 1000, capped at 500
	assert.Equal(t, 500, ord.DiscountCents)
	assert.Equal(t, 9500, ord.FinalCents)
	require.NotNil(t, ord.DiscountID)
}

func TestCreateOrder_CouponStacksWithInstantTransfer(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 10000, 5)

	require.NoError(t, f.db.Create(&catalog.Discount{
		ID: uuid.NewString(), Code: "MIL", Type: catalog.DiscountFlat, Value: 1000,
		Active:   true,
		StartsAt: time.Now().Add(-time.Hour), EndsAt: time.Now().Add(time.Hour),
	}).Error)

	in := f.input(f.pixID, ItemInput{ProductID: pid, Quantity: 1})
	in.DiscountCode = "MIL"

	ord, _, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	// 10% method discount brings 10000 to 9000, flat coupon takes 1000 more
	assert.Equal(t, 10000, ord.TotalCents)
	assert.Equal(t, 2000, ord.DiscountCents)
	assert.Equal(t, 8000, ord.FinalCents)
}

func TestCreateOrder_FlatCouponClampedToTotal(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 500, 5)

	require.NoError(t, f.db.Create(&catalog.Discount{
		ID: uuid.NewString(), Code: "GIGANTE", Type: catalog.DiscountFlat, Value: 99999,
		Active:   true,
		StartsAt: time.Now().Add(-time.Hour), EndsAt: time.Now().Add(time.Hour),
	}).Error)

	in := f.input(f.cardID, ItemInput{ProductID: pid, Quantity: 1})
	in.DiscountCode = "GIGANTE"

	ord, _, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, ord.FinalCents)
	assert.Equal(t, 500, ord.DiscountCents)
}

func TestCreateOrder_RejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, 5000, 3)

	t.Run("no items", func(t *testing.T) {
		_, _, err := f.svc.CreateOrder(context.Background(), f.input(f.cardID))
		assert.ErrorIs(t, err, ErrNoItems)
	})

	t.Run("unknown address", func(t *testing.T) {
		in := f.input(f.cardID, ItemInput{ProductID: pid, Quantity: 1})
		in.ShippingAddressID = uuid.NewString()
		_, _, err := f.svc.CreateOrder(context.Background(), in)
		assert.ErrorIs(t, err, ErrAddressUnknown)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		_, _, err := f.svc.CreateOrder(context.Background(),
			f.input(uuid.NewString(), ItemInput{ProductID: pid, Quantity: 1}))
		assert.ErrorIs(t, err, ErrPaymentMethodUnknown)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, _, err := f.svc.CreateOrder(context.Background(),
			f.input(f.cardID, ItemInput{ProductID: uuid.NewString(), Quantity: 1}))
		assert.ErrorIs(t, err, ErrProductUnavailable)
	})

	t.Run("inactive product", func(t *testing.T) {
		inactive := f.seedProduct(t, 5000, 3)
		require.NoError(t, f.db.Model(&catalog.Product{}).Where("id = ?", inactive).
			Update("is_active", false).Error)
		_, _, err := f.svc.CreateOrder(context.Background(),
			f.input(f.cardID, ItemInput{ProductID: inactive, Quantity: 1}))
		assert.ErrorIs(t, err, ErrProductUnavailable)
	})

	t.Run("variant of another product", func(t *testing.T) {
		other := f.seedProduct(t, 5000, 3)
		vid := uuid.NewString()
		require.NoError(t, f.db.Create(&catalog.Variant{
			ID: vid, ProductID: other, SKU: "SKU-X", CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}).Error)
		_, _, err := f.svc.CreateOrder(context.Background(),
			f.input(f.cardID, ItemInput{ProductID: pid, VariantID: &vid, Quantity: 1}))
		assert.ErrorIs(t, err, ErrVariantUnknown)
	})
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Now()
	a := NewOrderNumber(now)
	b := NewOrderNumber(now)

	assert.True(t, len(a) > 3 && a[:3] == "LJ-")
	assert.NotEqual(t, a, b)
}
