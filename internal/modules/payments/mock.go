package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"lojinha.com/app/internal/modules/catalog"
)

// MockProvider keeps intents in memory. Used in dev and in tests; status
// can be flipped from test code to simulate processor-side transitions.
type MockProvider struct {
	Secret string

	mu       sync.Mutex
	statuses map[string]string

	// failure injection
	CreateErr error
	StatusErr error
}

func NewMockProvider(secret string) *MockProvider {
	return &MockProvider{Secret: secret, statuses: map[string]string{}}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResponse, error) {
	if m.CreateErr != nil {
		return CreateIntentResponse{}, m.CreateErr
	}

	id := "mock_" + uuid.NewString()
	m.mu.Lock()
	m.statuses[id] = "pending"
	m.mu.Unlock()

	res := CreateIntentResponse{ExternalID: id, Status: "pending"}
	if req.Method == catalog.MethodInstantTransfer {
		res.QRPayload = "00020126mock" + id
		// 1x1 transparent png
		res.QRImageBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="
	} else {
		res.InitPoint = "https://pay.mock.local/init/" + id
	}
	return res, nil
}

func (m *MockProvider) GetIntentStatus(ctx context.Context, externalID string) (string, error) {
	if m.StatusErr != nil {
		return "", m.StatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[externalID]
	if !ok {
		return "", fmt.Errorf("mock: unknown intent %s", externalID)
	}
	return st, nil
}

// SetStatus simulates the processor moving an intent.
func (m *MockProvider) SetStatus(externalID, status string) {
	m.mu.Lock()
	m.statuses[externalID] = status
	m.mu.Unlock()
}

func (m *MockProvider) VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(m.Secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(headers.Get("X-Signature"))) {
		return WebhookEvent{}, fmt.Errorf("invalid webhook signature")
	}

	var payload struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return WebhookEvent{
		EventID:       payload.ID,
		Type:          payload.Type,
		TransactionID: payload.Data.ID,
		Status:        payload.Data.Status,
	}, nil
}
