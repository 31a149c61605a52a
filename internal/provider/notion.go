package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.flowdeck.io/connect/domain"
)

var (
	NotionAuthEndpoint  = "https://api.notion.com/v1/oauth/authorize"
	NotionTokenEndpoint = "https://api.notion.com/v1/oauth/token"
)

// NotionProvider implements the Descriptor interface for Notion. Notion is a
// confidential client with a non-standard token endpoint: the exchange is a
// JSON POST authenticated with HTTP Basic (client_id:client_secret), and the
// response carries workspace metadata alongside the bot token. The token is
// long-lived and behaves like an API key, so the consumer persists it as one.
type NotionProvider struct {
	*baseProvider
}

// NewNotionProvider creates a new NotionProvider.
func NewNotionProvider(clientID, clientSecret string) *NotionProvider {
	return &NotionProvider{
		baseProvider: &baseProvider{
			name:     "notion",
			authType: domain.AuthTypeAPIKey,
			creds:    Credentials{ClientID: clientID, ClientSecret: clientSecret},
			authURL:  NotionAuthEndpoint,
			// tokenURL unused; Exchange talks to NotionTokenEndpoint directly.
			extraAuthParams: url.Values{"owner": {"user"}},
		},
	}
}

// Exchange swaps the authorization code for Notion's bot token.
func (p *NotionProvider) Exchange(ctx context.Context, req ExchangeRequest) (*domain.TokenBundle, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         req.Code,
		"redirect_uri": req.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("notion: failed to encode token request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, NotionTokenEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("notion: failed to build token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(req.Credentials.ClientID + ":" + req.Credentials.ClientSecret))
	httpReq.Header.Set("Authorization", "Basic "+basic)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("notion: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("notion: token endpoint returned status %d: %s: %w", resp.StatusCode, string(body), ErrExchangeFailed)
	}

	var raw struct {
		AccessToken   string `json:"access_token"`
		TokenType     string `json:"token_type"`
		BotID         string `json:"bot_id"`
		WorkspaceID   string `json:"workspace_id"`
		WorkspaceName string `json:"workspace_name"`
		WorkspaceIcon string `json:"workspace_icon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("notion: failed to decode token response: %w", err)
	}

	return &domain.TokenBundle{
		Provider:    p.name,
		AccessToken: raw.AccessToken,
		TokenType:   raw.TokenType,
		Extra: map[string]string{
			"bot_id":         raw.BotID,
			"workspace_id":   raw.WorkspaceID,
			"workspace_name": raw.WorkspaceName,
		},
	}, nil
}
