package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lojinha.com/app/internal/modules/catalog"
	"lojinha.com/app/internal/shared/apperr"
)

const mpTimeout = 10 * time.Second

// MercadoPago adapter. Instant transfer goes through /v1/payments with the
// pix payment method; card checkouts get a hosted preference (init point)
// and the charge itself happens after client-side tokenization.
type MercadoPago struct {
	BaseURL       string
	AccessToken   string
	WebhookSecret string
	HTTPClient    *http.Client
}

func NewMercadoPago(baseURL, accessToken, webhookSecret string) *MercadoPago {
	return &MercadoPago{
		BaseURL:       baseURL,
		AccessToken:   accessToken,
		WebhookSecret: webhookSecret,
		HTTPClient:    &http.Client{Timeout: mpTimeout},
	}
}

func (m *MercadoPago) Name() string { return "mercadopago" }

type mpPaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             mpPayer `json:"payer"`
	NotificationURL   string  `json:"notification_url,omitempty"`
	ExternalReference string  `json:"external_reference,omitempty"`
	DateOfExpiration  *mpTime `json:"date_of_expiration,omitempty"`
}

type mpPayer struct {
	Email string `json:"email"`
}

type mpTime time.Time

func (t mpTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Time(t).Format("2006-01-02T15:04:05.000-07:00"))), nil
}

type mpPaymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	Message            string      `json:"message"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type mpPreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	Payer             mpPayer            `json:"payer"`
	NotificationURL   string             `json:"notification_url,omitempty"`
	ExternalReference string             `json:"external_reference,omitempty"`
}

type mpPreferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type mpPreferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
	Message   string `json:"message"`
}

func (m *MercadoPago) CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResponse, error) {
	switch req.Method {
	case catalog.MethodInstantTransfer:
		return m.createPixPayment(ctx, req)
	case catalog.MethodCard:
		return m.createCardPreference(ctx, req)
	default:
		return CreateIntentResponse{}, apperr.InvalidErr("Método de pagamento não suportado.", nil)
	}
}

func (m *MercadoPago) createPixPayment(ctx context.Context, req CreateIntentRequest) (CreateIntentResponse, error) {
	exp := mpTime(req.ExpiresAt)
	body := mpPaymentRequest{
		TransactionAmount: float64(req.AmountCents) / 100,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer:             mpPayer{Email: req.PayerEmail},
		NotificationURL:   req.NotificationURL,
		ExternalReference: req.ExternalReference,
	}
	if !req.ExpiresAt.IsZero() {
		body.DateOfExpiration = &exp
	}

	var out mpPaymentResponse
	if err := m.post(ctx, "/v1/payments", req.IdempotencyKey, body, &out); err != nil {
		return CreateIntentResponse{}, err
	}

	return CreateIntentResponse{
		ExternalID:    out.ID.String(),
		Status:        out.Status,
		QRPayload:     out.PointOfInteraction.TransactionData.QRCode,
		QRImageBase64: out.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

func (m *MercadoPago) createCardPreference(ctx context.Context, req CreateIntentRequest) (CreateIntentResponse, error) {
	body := mpPreferenceRequest{
		Items: []mpPreferenceItem{{
			Title:     req.Description,
			Quantity:  1,
			UnitPrice: float64(req.AmountCents) / 100,
		}},
		Payer:             mpPayer{Email: req.PayerEmail},
		NotificationURL:   req.NotificationURL,
		ExternalReference: req.ExternalReference,
	}

	var out mpPreferenceResponse
	if err := m.post(ctx, "/checkout/preferences", req.IdempotencyKey, body, &out); err != nil {
		return CreateIntentResponse{}, err
	}

	return CreateIntentResponse{
		ExternalID: out.ID,
		Status:     "pending",
		InitPoint:  out.InitPoint,
	}, nil
}

func (m *MercadoPago) GetIntentStatus(ctx context.Context, externalID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+"/v1/payments/"+externalID, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.AccessToken)

	res, err := m.HTTPClient.Do(httpReq)
	if err != nil {
		return "", apperr.UnavailableErr("Processador de pagamento indisponível.", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 500 {
		return "", apperr.UnavailableErr("Processador de pagamento indisponível.", fmt.Errorf("mercadopago: status %d", res.StatusCode))
	}
	if res.StatusCode >= 400 {
		return "", apperr.NotFoundErr("Pagamento não encontrado no processador.")
	}

	var out mpPaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("mercadopago: decode status: %w", err)
	}
	return out.Status, nil
}

// Webhook body: {"id": "...", "type": "payment", "data": {"id": "...", "status": "..."}}
// Signature: hex HMAC-SHA256 of the raw body in X-Signature.
func (m *MercadoPago) VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error) {
	sig := headers.Get("X-Signature")
	if sig == "" || !m.validSignature(body, sig) {
		return WebhookEvent{}, fmt.Errorf("invalid webhook signature")
	}

	var payload struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID     json.Number `json:"id"`
			Status string      `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("invalid webhook payload: %w", err)
	}

	return WebhookEvent{
		EventID:       payload.ID,
		Type:          payload.Type,
		TransactionID: payload.Data.ID.String(),
		Status:        payload.Data.Status,
	}, nil
}

func (m *MercadoPago) validSignature(body []byte, got string) bool {
	mac := hmac.New(sha256.New, []byte(m.WebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(got))
}

func (m *MercadoPago) post(ctx context.Context, path, idempotencyKey string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	res, err := m.HTTPClient.Do(httpReq)
	if err != nil {
		// network/timeout: retryable
		return apperr.UnavailableErr("Processador de pagamento indisponível.", err)
	}
	defer res.Body.Close()

	resBody, _ := io.ReadAll(res.Body)

	if res.StatusCode >= 500 {
		return apperr.UnavailableErr("Processador de pagamento indisponível.",
			fmt.Errorf("mercadopago: status %d: %s", res.StatusCode, truncate(string(resBody), 200)))
	}
	if res.StatusCode >= 400 {
		// processor-reported validation problem: not retryable
		msg := "Pagamento recusado pelo processador."
		var pe struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(resBody, &pe) == nil && pe.Message != "" {
			msg = pe.Message
		}
		return &apperr.AppError{Kind: apperr.Invalid, PublicMsg: msg,
			Err: fmt.Errorf("mercadopago: status %d: %s", res.StatusCode, truncate(string(resBody), 200))}
	}

	return json.Unmarshal(resBody, out)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
