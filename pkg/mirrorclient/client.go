/**
 * @description
 * This package provides a client for the account-service's internal mirror
 * endpoint. The orchestrator forwards every finalized transaction here after
 * the ledger commit; the call is best-effort and idempotent on the
 * transaction id, so retries and reconciler re-forwards are safe.
 */
package mirrorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paylink/fintech-backend/internal/domain"
)

// Client is a client for the account-service mirror.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new account mirror client with a bounded timeout.
func NewClient(baseURL string, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RecordTransaction forwards a finalized transaction to the mirror.
func (c *Client) RecordTransaction(ctx context.Context, tx domain.Transaction) error {
	if c.baseURL == "" {
		return fmt.Errorf("account service base url is empty")
	}

	endpoint := fmt.Sprintf("%s/internal/transactions", c.baseURL)

	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("account service returned error status %d", resp.StatusCode)
	}

	return nil
}
