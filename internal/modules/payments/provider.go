package payments

import (
	"context"
	"net/http"
	"time"
)

type CreateIntentRequest struct {
	Method            string // catalog.MethodCard | catalog.MethodInstantTransfer
	AmountCents       int
	Currency          string
	Description       string
	PayerEmail        string
	NotificationURL   string
	ExternalReference string // our payment id
	ExpiresAt         time.Time
	IdempotencyKey    string
}

type CreateIntentResponse struct {
	ExternalID string
	Status     string // raw processor status, mapped by the reconciler

	// instant transfer
	QRPayload     string
	QRImageBase64 string

	// card: processor-hosted init point; tokenization happens client-side
	InitPoint string
}

// Processor webhook event. Status may be empty when the processor only
// pushes a reference; the webhook service then fetches the status itself.
type WebhookEvent struct {
	EventID       string
	Type          string // only "payment" events are processed
	TransactionID string
	Status        string
}

type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResponse, error)
	GetIntentStatus(ctx context.Context, externalID string) (string, error)

	// Webhook: verify signature + parse event
	VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error)
}
