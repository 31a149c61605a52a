// Package client is the thin HTTP client for the product backend that
// persists integration records. The connect service itself stores nothing
// durable; every successful flow ends in one POST here.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.flowdeck.io/connect/domain"
)

// Integration mirrors the backend's integration record.
type Integration struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	AuthType    domain.AuthType   `json:"auth_type"`
	Type        string            `json:"type"`
	IsActive    bool              `json:"is_active"`
	Credentials map[string]string `json:"credentials"`
}

// Client calls the product backend, bearer-authenticated with the user's own
// session token (distinct from any third-party OAuth token).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a backend client for baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateIntegration persists an integration. The Idempotency-Key header is
// derived from the provider and external account, so re-delivering the same
// token bundle cannot create a duplicate record.
func (c *Client) CreateIntegration(ctx context.Context, sessionToken string, integration *Integration) (*Integration, error) {
	payload, err := json.Marshal(integration)
	if err != nil {
		return nil, fmt.Errorf("failed to encode integration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/integrations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build integration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	req.Header.Set("Idempotency-Key", idempotencyKey(integration))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("integration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var created Integration
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode integration response: %w", err)
	}
	return &created, nil
}

// idempotencyKey fingerprints the (provider, external account) pair. The
// account discriminator falls back to the token itself when the provider
// exposes no account identifier.
func idempotencyKey(integration *Integration) string {
	account := integration.Credentials["workspace_id"]
	if account == "" {
		account = integration.Credentials["cloud_id"]
	}
	if account == "" {
		account = integration.Credentials["access_token"]
	}
	if account == "" {
		account = integration.Credentials["token"]
	}
	sum := sha256.Sum256([]byte(integration.Type + ":" + account))
	return hex.EncodeToString(sum[:])
}
