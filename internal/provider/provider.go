package provider

import (
	"context"
	"net/url"

	"go.flowdeck.io/connect/domain"
	"golang.org/x/oauth2"
)

// Credentials are the OAuth client credentials used for one authorization
// flow. For confidential providers they come from static configuration; for
// dynamically-registered providers they come from the registration cache.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// AuthRequest carries everything a descriptor needs to compose the
// authorization URL the browser is redirected to.
type AuthRequest struct {
	Credentials   Credentials
	RedirectURL   string
	State         string
	CodeChallenge string // empty when the provider does not use PKCE
}

// ExchangeRequest carries everything a descriptor needs for the
// server-to-server authorization_code exchange at callback time.
type ExchangeRequest struct {
	Credentials  Credentials
	RedirectURL  string
	Code         string
	CodeVerifier string // empty when the provider does not use PKCE
}

// Descriptor describes one connectable provider. The whole connection flow
// is generic; only the endpoints, scopes, exchange encoding and token
// response mapping differ per provider, and those live behind this interface.
//
//go:generate go run go.uber.org/mock/mockgen -source=$GOFILE -destination=mock/mock_$GOFILE -package=mock_$GOPACKAGE Descriptor
type Descriptor interface {
	// Name returns the unique identifier used in routes, redirect parameters
	// and the fragment's provider field (e.g. "notion", "atlassian").
	Name() string

	// AuthType tells the token consumer how to shape the backend credentials
	// payload for this provider.
	AuthType() domain.AuthType

	// UsesPKCE reports whether the authorization request must carry an S256
	// code challenge and the exchange the matching verifier.
	UsesPKCE() bool

	// Credentials returns the statically configured client credentials.
	// Dynamically-registered providers return the zero value.
	Credentials() Credentials

	// AuthCodeURL composes the provider's authorization URL.
	AuthCodeURL(req AuthRequest) string

	// Exchange swaps the authorization code for a token bundle. A non-2xx
	// provider response is a terminal failure for this attempt.
	Exchange(ctx context.Context, req ExchangeRequest) (*domain.TokenBundle, error)

	// Enrich performs any post-exchange resolution the provider needs before
	// the bundle is handed to the browser (e.g. Atlassian's accessible
	// cloud sites). Most providers return the bundle untouched.
	Enrich(ctx context.Context, bundle *domain.TokenBundle) error
}

// SelfRegistering is implemented by providers that obtain their OAuth client
// via RFC 7591 dynamic client registration instead of static configuration.
type SelfRegistering interface {
	Descriptor

	// Register creates an OAuth client at the provider's registration
	// endpoint. Called at most once per credential cache lifetime.
	Register(ctx context.Context, redirectURL string) (*domain.DynamicClientCredentials, error)
}

// baseProvider holds the fields shared by the concrete descriptors and
// implements the parts of Descriptor that never vary.
type baseProvider struct {
	name     string
	authType domain.AuthType
	creds    Credentials
	authURL  string
	tokenURL string
	scopes   []string
	// authStyle pins how client credentials are presented at the token
	// endpoint; zero means x/oauth2 auto-detection.
	authStyle oauth2.AuthStyle
	// extraAuthParams are provider-specific authorization query parameters
	// (e.g. Atlassian's audience, Notion's owner).
	extraAuthParams url.Values
}

func (b *baseProvider) Name() string              { return b.name }
func (b *baseProvider) AuthType() domain.AuthType { return b.authType }
func (b *baseProvider) UsesPKCE() bool            { return false }
func (b *baseProvider) Credentials() Credentials  { return b.creds }

func (b *baseProvider) Enrich(context.Context, *domain.TokenBundle) error { return nil }

// oauth2Config builds the x/oauth2 config used for URL composition and, for
// form-encoded providers, the exchange itself.
func (b *baseProvider) oauth2Config(creds Credentials, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       b.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   b.authURL,
			TokenURL:  b.tokenURL,
			AuthStyle: b.authStyle,
		},
	}
}

// AuthCodeURL composes the authorization URL with response_type=code, the
// state and any provider-specific extras. PKCE-capable descriptors append
// the challenge parameters via their own override.
func (b *baseProvider) AuthCodeURL(req AuthRequest) string {
	conf := b.oauth2Config(req.Credentials, req.RedirectURL)

	opts := make([]oauth2.AuthCodeOption, 0, len(b.extraAuthParams)+2)
	for key, vals := range b.extraAuthParams {
		for _, v := range vals {
			opts = append(opts, oauth2.SetAuthURLParam(key, v))
		}
	}
	if req.CodeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}

	return conf.AuthCodeURL(req.State, opts...)
}
