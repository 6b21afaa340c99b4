package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

type webhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status,omitempty"`
	} `json:"data"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/mock", "Webhook URL")
	secret := flag.String("secret", os.Getenv("WEBHOOK_SECRET"), "Webhook secret")
	eventID := flag.String("event-id", "evt_"+randomHex(8), "Event ID")
	eventType := flag.String("type", "payment", "Event type")
	transactionID := flag.String("transaction-id", "", "Processor transaction id (required)")
	status := flag.String("status", "approved", "Payment status (approved, rejected, cancelled, refunded, in_process; empty to force a status fetch)")
	dryRun := flag.Bool("dry-run", false, "Only print signature header, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and WEBHOOK_SECRET not set\n")
		os.Exit(1)
	}
	if *transactionID == "" {
		fmt.Fprintf(os.Stderr, "Error: -transaction-id is required\n")
		os.Exit(1)
	}

	payload := webhookPayload{
		ID:   *eventID,
		Type: *eventType,
	}
	payload.Data.ID = *transactionID
	payload.Data.Status = *status

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	sig := computeSig([]byte(*secret), body)

	fmt.Printf("X-Signature: %s\n", sig)
	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest("POST", *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func computeSig(secret, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
