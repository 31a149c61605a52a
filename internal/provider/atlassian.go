package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.flowdeck.io/connect/domain"
)

var (
	AtlassianAuthEndpoint      = "https://auth.atlassian.com/authorize"
	AtlassianTokenEndpoint     = "https://auth.atlassian.com/oauth/token"
	AtlassianResourcesEndpoint = "https://api.atlassian.com/oauth/token/accessible-resources"
)

// AtlassianProvider implements the Descriptor interface for Atlassian's
// direct 3LO OAuth (Jira/Confluence cloud). The exchange is a JSON POST with
// the client credentials in the body, and a successful exchange is followed
// by one authenticated GET to the accessible-resources endpoint to resolve
// the cloud site the token is scoped to.
type AtlassianProvider struct {
	*baseProvider
}

// NewAtlassianProvider creates a new AtlassianProvider.
func NewAtlassianProvider(clientID, clientSecret string, scopes []string) *AtlassianProvider {
	if len(scopes) == 0 {
		scopes = []string{"read:jira-work", "write:jira-work", "read:confluence-content.all", "offline_access"}
	}
	return &AtlassianProvider{
		baseProvider: &baseProvider{
			name:     "atlassian",
			authType: domain.AuthTypeOAuth,
			creds:    Credentials{ClientID: clientID, ClientSecret: clientSecret},
			authURL:  AtlassianAuthEndpoint,
			scopes:   scopes,
			extraAuthParams: url.Values{
				"audience": {"api.atlassian.com"},
				"prompt":   {"consent"},
			},
		},
	}
}

// Exchange swaps the authorization code for an Atlassian token pair.
func (p *AtlassianProvider) Exchange(ctx context.Context, req ExchangeRequest) (*domain.TokenBundle, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     req.Credentials.ClientID,
		"client_secret": req.Credentials.ClientSecret,
		"code":          req.Code,
		"redirect_uri":  req.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("atlassian: failed to encode token request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, AtlassianTokenEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("atlassian: failed to build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("atlassian: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("atlassian: token endpoint returned status %d: %s: %w", resp.StatusCode, string(body), ErrExchangeFailed)
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("atlassian: failed to decode token response: %w", err)
	}

	return &domain.TokenBundle{
		Provider:     p.name,
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		TokenType:    raw.TokenType,
		ExpiresIn:    raw.ExpiresIn,
		Scope:        raw.Scope,
		Extra:        map[string]string{},
	}, nil
}

// Enrich resolves the cloud site the token grants access to. An authorization
// that grants no sites is a distinct, observable failure rather than an
// index-out-of-range surprise.
func (p *AtlassianProvider) Enrich(ctx context.Context, bundle *domain.TokenBundle) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, AtlassianResourcesEndpoint, nil)
	if err != nil {
		return fmt.Errorf("atlassian: failed to build accessible-resources request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+bundle.AccessToken)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("atlassian: accessible-resources request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("atlassian: accessible-resources returned status %d: %s: %w", resp.StatusCode, string(body), ErrEnrichmentFailed)
	}

	var resources []struct {
		ID   string `json:"id"`
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&resources); err != nil {
		return fmt.Errorf("atlassian: failed to decode accessible-resources response: %w", err)
	}
	if len(resources) == 0 {
		return ErrNoAccessibleResources
	}

	if bundle.Extra == nil {
		bundle.Extra = map[string]string{}
	}
	bundle.Extra["cloud_id"] = resources[0].ID
	bundle.Extra["base_url"] = resources[0].URL

	return nil
}
