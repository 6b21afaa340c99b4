package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"lojinha.com/app/internal/http/middleware"
	"lojinha.com/app/internal/modules/checkout"
	"lojinha.com/app/internal/modules/orders"
	"lojinha.com/app/internal/shared/apperr"
)

type OrdersHandler struct {
	Repo *orders.Repo
}

func NewOrdersHandler(repo *orders.Repo) *OrdersHandler {
	return &OrdersHandler{Repo: repo}
}

type orderJSON struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Total       string `json:"total"`
	Discount    string `json:"discount"`
	FinalAmount string `json:"final_amount"`
	Currency    string `json:"currency"`
	ItemCount   int    `json:"item_count,omitempty"`
	PaidAt      string `json:"paid_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type orderItemJSON struct {
	ProductID      string  `json:"product_id"`
	VariantID      *string `json:"variant_id,omitempty"`
	Title          string  `json:"title"`
	Quantity       int     `json:"quantity"`
	UnitPrice      string  `json:"unit_price"`
	FinalUnitPrice string  `json:"final_unit_price"`
	LineTotal      string  `json:"line_total"`
}

// GET /api/orders?page=&status=
func (h *OrdersHandler) List(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	res, err := h.Repo.ListByUser(c.Request.Context(), orders.ListByUserParams{
		UserID:   u.ID,
		Page:     page,
		PageSize: 20,
		Status:   c.Query("status"),
	})
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	out := make([]orderJSON, len(res.Items))
	for i, it := range res.Items {
		out[i] = toOrderJSON(it.Order)
		out[i].ItemCount = it.Count
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "total": res.Total, "page": page})
}

// GET /api/orders/:number
func (h *OrdersHandler) Get(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	ord, err := h.Repo.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Pedido não encontrado."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	if ord.UserID != u.ID {
		middleware.Fail(c, apperr.NotFoundErr("Pedido não encontrado."))
		return
	}

	_, items, err := h.Repo.GetWithItems(c.Request.Context(), ord.ID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	itemsOut := make([]orderItemJSON, len(items))
	for i, it := range items {
		itemsOut[i] = orderItemJSON{
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			Title:          it.Title,
			Quantity:       it.Quantity,
			UnitPrice:      checkout.FormatCents(it.UnitPriceCents),
			FinalUnitPrice: checkout.FormatCents(it.FinalUnitPriceCents),
			LineTotal:      checkout.FormatCents(it.LineTotalCents),
		}
	}

	c.JSON(http.StatusOK, gin.H{"order": toOrderJSON(ord), "items": itemsOut})
}

func toOrderJSON(o orders.Order) orderJSON {
	out := orderJSON{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Total:       checkout.FormatCents(o.TotalCents),
		Discount:    checkout.FormatCents(o.DiscountCents),
		FinalAmount: checkout.FormatCents(o.FinalCents),
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.PaidAt != nil {
		out.PaidAt = o.PaidAt.UTC().Format(time.RFC3339)
	}
	return out
}
