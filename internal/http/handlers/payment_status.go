package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lojinha.com/app/internal/http/middleware"
	"lojinha.com/app/internal/modules/payments"
	"lojinha.com/app/internal/shared/apperr"
)

type PaymentStatusHandler struct {
	Reconciler *payments.Reconciler
}

func NewPaymentStatusHandler(rec *payments.Reconciler) *PaymentStatusHandler {
	return &PaymentStatusHandler{Reconciler: rec}
}

// GET /api/payments/:external_id/status
//
// Poll endpoint for the checkout screen: coarse status only, no
// persistence. The webhook path owns the durable state transitions.
func (h *PaymentStatusHandler) Get(c *gin.Context) {
	externalID := c.Param("external_id")
	if externalID == "" {
		middleware.Fail(c, apperr.InvalidErr("Identificador do pagamento ausente.", nil))
		return
	}

	res, err := h.Reconciler.Poll(c.Request.Context(), externalID)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Pagamento não encontrado."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      res.Status,
		"lastUpdated": res.LastUpdated.UTC().Format(time.RFC3339),
	})
}
