package domain

import (
	"net/url"
	"strconv"
	"time"
)

// AuthType describes how the backend expects a provider's credentials to be
// shaped when the integration record is created.
type AuthType string

const (
	// AuthTypeAPIKey is used for providers whose access token behaves like a
	// long-lived bearer token (e.g. Notion's bot token).
	AuthTypeAPIKey AuthType = "api_key"
	// AuthTypeOAuth is used for providers that hand back a full OAuth
	// access/refresh token tuple.
	AuthTypeOAuth AuthType = "oauth"
)

// PendingAuthorizationContext is the payload stored in the secure store under
// the state key between the initiation redirect and the provider callback.
// It is single-use: the callback handler consumes it with an atomic
// get-and-delete, so a replayed state cannot reach token exchange.
type PendingAuthorizationContext struct {
	Provider     string    `json:"provider"`
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	OriginalPath string    `json:"original_path"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DynamicClientCredentials holds the result of RFC 7591 dynamic client
// registration for providers that do not support pre-provisioned clients.
// Cached for weeks so registration happens at most once per cache lifetime.
type DynamicClientCredentials struct {
	ClientID                string    `json:"client_id"`
	ClientSecret            string    `json:"client_secret,omitempty"`
	RegistrationAccessToken string    `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string    `json:"registration_client_uri,omitempty"`
	RegisteredAt            time.Time `json:"registered_at"`
}

// TokenBundle is the provider-specific credential set returned by a token
// exchange. It is handed to the browser in the URL fragment and never in the
// query string, so it is not sent to any server on the next navigation.
type TokenBundle struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
	// Extra carries provider-specific auxiliary fields, e.g. Atlassian's
	// cloud_id/base_url or Notion's workspace metadata.
	Extra map[string]string
}

// FragmentValues serializes the bundle into the key/value pairs placed after
// the '#' of the final redirect. Empty fields are omitted.
func (b *TokenBundle) FragmentValues() url.Values {
	v := url.Values{}
	v.Set("provider", b.Provider)
	v.Set("access_token", b.AccessToken)
	if b.RefreshToken != "" {
		v.Set("refresh_token", b.RefreshToken)
	}
	if b.TokenType != "" {
		v.Set("token_type", b.TokenType)
	}
	if b.ExpiresIn > 0 {
		v.Set("expires_in", strconv.FormatInt(b.ExpiresIn, 10))
	}
	if b.Scope != "" {
		v.Set("scope", b.Scope)
	}
	for k, val := range b.Extra {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}
