package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lojinha.com/app/internal/http/middleware"
	"lojinha.com/app/internal/http/validation"
	"lojinha.com/app/internal/modules/catalog"
	"lojinha.com/app/internal/modules/checkout"
	"lojinha.com/app/internal/modules/orders"
	"lojinha.com/app/internal/modules/payments"
	"lojinha.com/app/internal/shared/apperr"
)

type CheckoutHandler struct {
	DB         *gorm.DB
	CheckoutSv *payments.CheckoutService
	Catalog    *catalog.Repo
}

func NewCheckoutHandler(db *gorm.DB, svc *payments.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{DB: db, CheckoutSv: svc, Catalog: catalog.NewRepo(db)}
}

type checkoutItemInput struct {
	ProductID string          `json:"product_id" binding:"required,uuid"`
	VariantID *string         `json:"variant_id" binding:"omitempty,uuid"`
	Quantity  int             `json:"quantity" binding:"required,gte=1"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

type checkoutInput struct {
	ShippingAddressID string              `json:"shipping_address_id" binding:"required,uuid"`
	BillingAddressID  *string             `json:"billing_address_id" binding:"omitempty,uuid"`
	PaymentMethodID   string              `json:"payment_method_id" binding:"required,uuid"`
	DiscountCode      string              `json:"discount_code" binding:"omitempty,max=64"`
	ClaimedTotal      decimal.Decimal     `json:"total" binding:"required"`
	Items             []checkoutItemInput `json:"items" binding:"required,min=1,dive"`
}

type checkoutItemJSON struct {
	ProductID    string `json:"product_id"`
	ClaimedPrice string `json:"claimed_price"`
	CurrentPrice string `json:"current_price"`
	Quantity     int    `json:"quantity"`
	Subtotal     string `json:"subtotal"`
	PriceMatch   bool   `json:"price_match"`
}

// POST /api/checkout/instant-transfer
func (h *CheckoutHandler) InstantTransfer(c *gin.Context) {
	h.create(c, catalog.MethodInstantTransfer)
}

// POST /api/checkout/card
func (h *CheckoutHandler) Card(c *gin.Context) {
	h.create(c, catalog.MethodCard)
}

func (h *CheckoutHandler) create(c *gin.Context, wantMethod string) {
	u, _ := middleware.CurrentUser(c)

	var in checkoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Dados da requisição inválidos.", errs))
		return
	}

	pm, err := h.Catalog.PaymentMethodByID(c.Request.Context(), in.PaymentMethodID)
	if err != nil {
		middleware.Fail(c, apperr.NotFoundErr("Forma de pagamento não encontrada."))
		return
	}
	if pm.Type != wantMethod {
		middleware.Fail(c, apperr.InvalidErr("Forma de pagamento incompatível com este fluxo.", nil))
		return
	}

	svcIn := payments.CheckoutInput{
		UserID:            u.ID,
		PayerEmail:        u.Email,
		ShippingAddressID: in.ShippingAddressID,
		BillingAddressID:  in.BillingAddressID,
		PaymentMethodID:   in.PaymentMethodID,
		DiscountCode:      in.DiscountCode,
		ClaimedTotalCents: checkout.CentsFromDecimal(in.ClaimedTotal),
	}
	for _, it := range in.Items {
		svcIn.Items = append(svcIn.Items, payments.CheckoutItem{
			ProductID:         it.ProductID,
			VariantID:         it.VariantID,
			ClaimedPriceCents: checkout.CentsFromDecimal(it.UnitPrice),
			Quantity:          it.Quantity,
		})
	}

	res, err := h.CheckoutSv.Create(c.Request.Context(), svcIn)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := gin.H{
		"order_id":     res.Order.ID,
		"order_number": res.Order.OrderNumber,
		"payment_id":   res.Payment.ID,
		"status":       res.Payment.Status,
		"amount":       checkout.FormatCents(res.Order.FinalCents),
		"discount":     checkout.FormatCents(res.Order.DiscountCents),
		"currency":     res.Order.Currency,
	}
	if res.Payment.TransactionID != nil {
		out["external_id"] = *res.Payment.TransactionID
	}
	switch wantMethod {
	case catalog.MethodInstantTransfer:
		out["qr_payload"] = res.QRPayload
		out["qr_image_base64"] = res.QRImageBase64
		if res.QRImageURL != "" {
			out["qr_image_url"] = res.QRImageURL
		}
		out["expires_at"] = res.ExpiresAt.UTC().Format(time.RFC3339)
	case catalog.MethodCard:
		out["init_point"] = res.InitPoint
	}

	c.JSON(http.StatusCreated, out)
}

func (h *CheckoutHandler) fail(c *gin.Context, err error) {
	var vfe *payments.ValidationFailedError
	if errors.As(err, &vfe) {
		items := make([]checkoutItemJSON, 0, len(vfe.Result.Items))
		for _, it := range vfe.Result.Items {
			items = append(items, checkoutItemJSON{
				ProductID:    it.ProductID,
				ClaimedPrice: checkout.FormatCents(it.ClaimedPriceCents),
				CurrentPrice: checkout.FormatCents(it.DBPriceCents),
				Quantity:     it.Quantity,
				Subtotal:     checkout.FormatCents(it.SubtotalCents),
				PriceMatch:   it.PriceMatch,
			})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":            "Não foi possível validar o carrinho.",
			"errors":           vfe.Result.Errors,
			"items":            items,
			"calculated_total": checkout.FormatCents(vfe.Result.CalculatedTotalCents),
			"request_id":       middleware.GetRequestID(c),
		})
		return
	}

	var oos *checkout.OutOfStockError
	if errors.As(err, &oos) {
		middleware.Fail(c, apperr.ConflictErr("Um ou mais itens ficaram sem estoque."))
		return
	}

	switch {
	case errors.Is(err, payments.ErrEmptyCart), errors.Is(err, orders.ErrNoItems):
		middleware.Fail(c, apperr.InvalidErr("O carrinho está vazio.", nil))
	case errors.Is(err, orders.ErrAddressUnknown):
		middleware.Fail(c, apperr.NotFoundErr("Endereço de entrega não encontrado."))
	case errors.Is(err, orders.ErrPaymentMethodUnknown):
		middleware.Fail(c, apperr.NotFoundErr("Forma de pagamento não encontrada."))
	case errors.Is(err, orders.ErrProductUnavailable), errors.Is(err, orders.ErrVariantUnknown):
		middleware.Fail(c, apperr.InvalidErr("Um ou mais produtos não estão disponíveis.", nil))
	case errors.Is(err, orders.ErrDiscountInvalid):
		middleware.Fail(c, apperr.InvalidErr("Cupom de desconto inválido ou expirado.", nil))
	default:
		middleware.Fail(c, apperr.Wrap(err))
	}
}
