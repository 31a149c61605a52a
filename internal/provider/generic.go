package provider

import (
	"context"
	"fmt"
	"time"

	"go.flowdeck.io/connect/domain"
	"golang.org/x/oauth2"
	githubOAuth2 "golang.org/x/oauth2/github"
)

var (
	FigmaAuthEndpoint  = "https://www.figma.com/oauth"
	FigmaTokenEndpoint = "https://api.figma.com/v1/oauth/token"

	SlackAuthEndpoint  = "https://slack.com/oauth/v2/authorize"
	SlackTokenEndpoint = "https://slack.com/api/oauth.v2.access"

	SentryAuthEndpoint  = "https://sentry.io/oauth/authorize/"
	SentryTokenEndpoint = "https://sentry.io/oauth/token/"
)

// FormProvider is a confidential-client descriptor whose token endpoint
// speaks the standard form-encoded authorization_code exchange, handled
// entirely by x/oauth2. GitHub, Figma, Slack and Sentry all fit this shape.
type FormProvider struct {
	*baseProvider
}

// Exchange swaps the authorization code through x/oauth2.
func (p *FormProvider) Exchange(ctx context.Context, req ExchangeRequest) (*domain.TokenBundle, error) {
	conf := p.oauth2Config(req.Credentials, req.RedirectURL)

	tok, err := conf.Exchange(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.name, ErrExchangeFailed, err)
	}

	return bundleFromOAuth2Token(p.name, tok), nil
}

// NewGitHubProvider creates the GitHub descriptor. GitHub access tokens have
// no refresh half, so the consumer persists them bearer-style.
func NewGitHubProvider(clientID, clientSecret string, scopes []string) *FormProvider {
	if len(scopes) == 0 {
		scopes = []string{"repo", "read:org"}
	}
	return &FormProvider{baseProvider: &baseProvider{
		name:     "github",
		authType: domain.AuthTypeAPIKey,
		creds:    Credentials{ClientID: clientID, ClientSecret: clientSecret},
		authURL:  githubOAuth2.Endpoint.AuthURL,
		tokenURL: githubOAuth2.Endpoint.TokenURL,
		scopes:   scopes,
	}}
}

// NewFigmaProvider creates the Figma descriptor.
func NewFigmaProvider(clientID, clientSecret string, scopes []string) *FormProvider {
	if len(scopes) == 0 {
		scopes = []string{"file_read"}
	}
	return &FormProvider{baseProvider: &baseProvider{
		name:     "figma",
		authType: domain.AuthTypeOAuth,
		creds:    Credentials{ClientID: clientID, ClientSecret: clientSecret},
		authURL:  FigmaAuthEndpoint,
		tokenURL: FigmaTokenEndpoint,
		scopes:   scopes,
	}}
}

// NewSlackProvider creates the Slack descriptor.
func NewSlackProvider(clientID, clientSecret string, scopes []string) *FormProvider {
	if len(scopes) == 0 {
		scopes = []string{"chat:write", "channels:read"}
	}
	return &FormProvider{baseProvider: &baseProvider{
		name:     "slack",
		authType: domain.AuthTypeAPIKey,
		creds:    Credentials{ClientID: clientID, ClientSecret: clientSecret},
		authURL:  SlackAuthEndpoint,
		tokenURL: SlackTokenEndpoint,
		scopes:   scopes,
	}}
}

// NewSentryProvider creates the Sentry descriptor.
func NewSentryProvider(clientID, clientSecret string, scopes []string) *FormProvider {
	if len(scopes) == 0 {
		scopes = []string{"project:read", "event:read"}
	}
	return &FormProvider{baseProvider: &baseProvider{
		name:     "sentry",
		authType: domain.AuthTypeOAuth,
		creds:    Credentials{ClientID: clientID, ClientSecret: clientSecret},
		authURL:  SentryAuthEndpoint,
		tokenURL: SentryTokenEndpoint,
		scopes:   scopes,
	}}
}

// bundleFromOAuth2Token maps an x/oauth2 token into the fragment-bound
// TokenBundle shape.
func bundleFromOAuth2Token(providerName string, tok *oauth2.Token) *domain.TokenBundle {
	var expiresIn int64
	if !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	bundle := &domain.TokenBundle{
		Provider:     providerName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		Extra:        map[string]string{},
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		bundle.Scope = scope
	}
	return bundle
}
