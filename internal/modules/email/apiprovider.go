package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// APIProvider posts through a transactional email HTTP API
// (mailtrap-style payload).
type APIProvider struct {
	apiURL   string
	apiKey   string
	from     string
	fromName string
}

type apiPayload struct {
	From     personInfo   `json:"from"`
	To       []personInfo `json:"to"`
	Subject  string       `json:"subject"`
	Text     string       `json:"text,omitempty"`
	HTML     string       `json:"html,omitempty"`
	Category string       `json:"category,omitempty"`
}

type personInfo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func NewAPIProvider(apiURL, apiKey, from, fromName string) *APIProvider {
	return &APIProvider{apiURL: apiURL, apiKey: apiKey, from: from, fromName: fromName}
}

func (m *APIProvider) SendEmail(to string, toName string, subject string, htmlBody string, textBody string) error {
	if m.apiURL == "" || m.apiKey == "" {
		return fmt.Errorf("email API credentials not configured")
	}

	payload := apiPayload{
		From:     personInfo{Email: m.from, Name: m.fromName},
		To:       []personInfo{{Email: to, Name: toName}},
		Subject:  subject,
		HTML:     htmlBody,
		Text:     textBody,
		Category: "Transactional",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", m.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", m.apiKey))
	req.Header.Add("Content-Type", "application/json")

	client := &http.Client{}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("email API error: %d", res.StatusCode)
	}
	return nil
}
