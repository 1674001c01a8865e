// internal/sender/sender.go
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// Sender delivers one rendered message to one phone. Implementations must
// return a descriptive error on failure; the dispatch loop records it on the
// item and moves on.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// HTTPSender posts messages to the WhatsApp gateway, one send per call.
type HTTPSender struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

var _ Sender = (*HTTPSender)(nil)

func NewHTTPSender(baseURL, token string) *HTTPSender {
	return &HTTPSender{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, phone, message string) error {
	payload, _ := json.Marshal(map[string]string{
		"contactId": phone,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/whatsapp/send-message", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// MockSender simulates the gateway for local runs, failing a configurable
// fraction of sends.
type MockSender struct {
	FailureRate float64
}

var _ Sender = (*MockSender)(nil)

func (s *MockSender) Send(ctx context.Context, phone, message string) error {
	if rand.Float64() < s.FailureRate {
		return fmt.Errorf("mock sending failed")
	}
	return nil
}
