/**
 * @description
 * This package provides a client for the payment simulator, the sandbox that
 * stands in for a real payment rail. Given transfer parameters it either
 * issues an authorization token (approved) or declines. The orchestrator
 * absorbs every failure mode of this call into a FAILED transaction; the
 * client itself only reports what happened.
 */
package paymentsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the payment simulator.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new payment simulator client with a bounded timeout.
func NewClient(baseURL string, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PaymentParams are the transfer parameters submitted for authorization.
type PaymentParams struct {
	FromUser  string  `json:"fromUser"`
	ToUser    string  `json:"toUser"`
	Amount    float64 `json:"amount"`
	AccountID string  `json:"accountId,omitempty"`
}

// AuthorizationResult is the simulator's verdict. Approved is only
// trustworthy together with a non-empty token.
type AuthorizationResult struct {
	Approved bool   `json:"approved"`
	Token    string `json:"token,omitempty"`
}

// SimulatePayment submits the transfer parameters and returns the
// authorization outcome.
func (c *Client) SimulatePayment(ctx context.Context, params PaymentParams) (*AuthorizationResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("payment simulator base url is empty")
	}

	endpoint := fmt.Sprintf("%s/simulate", c.baseURL)

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to payment simulator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("payment simulator returned error status %d", resp.StatusCode)
	}

	var result AuthorizationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
