/**
 * @description
 * This package provides a client for the user-service's bank-link oracle. The
 * orchestrator asks it whether a payer has a linked payment method before any
 * side effect of a transfer saga takes place.
 */
package bankclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a client for the bank-link oracle.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new bank-link oracle client with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LinkStatus is the oracle's answer for one user.
type LinkStatus struct {
	Linked    bool   `json:"linked"`
	AccountID string `json:"accountId,omitempty"`
}

// CheckLink asks the oracle whether the user has a linked payment method.
func (c *Client) CheckLink(ctx context.Context, userID string) (*LinkStatus, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("bank-link service base url is empty")
	}

	endpoint := fmt.Sprintf("%s/check-bank/%s", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to bank-link service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bank-link service returned error status %d", resp.StatusCode)
	}

	var status LinkStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}
