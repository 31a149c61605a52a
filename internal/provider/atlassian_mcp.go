package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.flowdeck.io/connect/domain"
	"golang.org/x/oauth2"
)

var (
	AtlassianMCPAuthEndpoint         = "https://mcp.atlassian.com/v1/authorize"
	AtlassianMCPTokenEndpoint        = "https://mcp.atlassian.com/v1/token"
	AtlassianMCPRegistrationEndpoint = "https://mcp.atlassian.com/v1/register"
)

// AtlassianMCPProvider implements the Descriptor interface for Atlassian's
// MCP gateway. There is no pre-provisioned client: the first flow registers
// one via RFC 7591 dynamic client registration and the credentials are cached
// for weeks. The registered client is public, so every flow is bound with an
// S256 PKCE pair and the exchange is a standard form-encoded POST.
type AtlassianMCPProvider struct {
	*baseProvider

	clientName string
}

// NewAtlassianMCPProvider creates a new AtlassianMCPProvider. clientName is
// the display name sent during dynamic registration.
func NewAtlassianMCPProvider(clientName string, scopes []string) *AtlassianMCPProvider {
	if clientName == "" {
		clientName = "flowdeck-connect"
	}
	if len(scopes) == 0 {
		scopes = []string{"read:jira-work", "write:jira-work", "offline_access"}
	}
	return &AtlassianMCPProvider{
		baseProvider: &baseProvider{
			name:     "atlassian-mcp",
			authType: domain.AuthTypeOAuth,
			authURL:  AtlassianMCPAuthEndpoint,
			tokenURL: AtlassianMCPTokenEndpoint,
			scopes:   scopes,
			// Public client: credentials go in the form body, not Basic auth.
			authStyle: oauth2.AuthStyleInParams,
		},
		clientName: clientName,
	}
}

// UsesPKCE reports that MCP flows always carry a PKCE pair.
func (p *AtlassianMCPProvider) UsesPKCE() bool { return true }

// Register creates an OAuth client at the MCP registration endpoint.
func (p *AtlassianMCPProvider) Register(ctx context.Context, redirectURL string) (*domain.DynamicClientCredentials, error) {
	payload, err := json.Marshal(map[string]any{
		"client_name":                p.clientName,
		"redirect_uris":              []string{redirectURL},
		"grant_types":                []string{"authorization_code", "refresh_token"},
		"response_types":             []string{"code"},
		"scope":                      strings.Join(p.scopes, " "),
		"token_endpoint_auth_method": "none",
		"application_type":           "web",
	})
	if err != nil {
		return nil, fmt.Errorf("atlassian-mcp: failed to encode registration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, AtlassianMCPRegistrationEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("atlassian-mcp: failed to build registration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("atlassian-mcp: registration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("atlassian-mcp: registration returned status %d: %s: %w", resp.StatusCode, string(body), ErrRegistrationFailed)
	}

	var raw struct {
		ClientID                string `json:"client_id"`
		ClientSecret            string `json:"client_secret"`
		RegistrationAccessToken string `json:"registration_access_token"`
		RegistrationClientURI   string `json:"registration_client_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("atlassian-mcp: failed to decode registration response: %w", err)
	}
	if raw.ClientID == "" {
		return nil, fmt.Errorf("atlassian-mcp: registration response missing client_id: %w", ErrRegistrationFailed)
	}

	return &domain.DynamicClientCredentials{
		ClientID:                raw.ClientID,
		ClientSecret:            raw.ClientSecret,
		RegistrationAccessToken: raw.RegistrationAccessToken,
		RegistrationClientURI:   raw.RegistrationClientURI,
		RegisteredAt:            time.Now(),
	}, nil
}

// Exchange swaps the authorization code through x/oauth2, attaching the PKCE
// verifier to the form-encoded request.
func (p *AtlassianMCPProvider) Exchange(ctx context.Context, req ExchangeRequest) (*domain.TokenBundle, error) {
	conf := p.oauth2Config(req.Credentials, req.RedirectURL)

	tok, err := conf.Exchange(ctx, req.Code, oauth2.VerifierOption(req.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("atlassian-mcp: %w: %w", ErrExchangeFailed, err)
	}

	return bundleFromOAuth2Token(p.name, tok), nil
}
