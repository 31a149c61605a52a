package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.flowdeck.io/connect/cache"
	"go.flowdeck.io/connect/domain"
	flowerrors "go.flowdeck.io/connect/errors"
	"go.flowdeck.io/connect/internal/metrics"
	"go.flowdeck.io/connect/internal/provider"
)

const (
	defaultFlowContextTTL = 10 * time.Minute

	flowContextKeyPrefix = "pending:"
)

// CallbackParams are the query parameters a provider redirect may carry.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// FlowService drives the three-hop connection flow: it composes the
// authorization redirect, holds the per-flow context in the secure store, and
// turns the provider callback into the final success or failure redirect.
// Every outcome, including every failure, is a browser redirect; nothing is
// retried automatically.
type FlowService struct {
	registry   *provider.Registry
	store      cache.Store
	registrar  *RegistrationService
	baseURL    string
	returnPath string
	flowTTL    time.Duration
}

// NewFlowService creates a new FlowService. baseURL is the canonical app base
// URL redirect URIs are built from; returnPath is where failure redirects
// land when the originating page is unknown.
func NewFlowService(
	registry *provider.Registry,
	store cache.Store,
	registrar *RegistrationService,
	baseURL, returnPath string,
	flowTTL time.Duration,
) *FlowService {
	if flowTTL <= 0 {
		flowTTL = defaultFlowContextTTL
	}
	return &FlowService{
		registry:   registry,
		store:      store,
		registrar:  registrar,
		baseURL:    strings.TrimRight(baseURL, "/"),
		returnPath: returnPath,
		flowTTL:    flowTTL,
	}
}

// RedirectURI returns the fixed redirect URI registered for a provider.
func (s *FlowService) RedirectURI(providerName string) string {
	return s.baseURL + "/api/auth/" + providerName
}

// Initiate starts an authorization flow and returns the URL the browser must
// be redirected to. On failure that URL points back at the originating page
// with the machine-readable error code, so the caller redirects either way.
func (s *FlowService) Initiate(ctx context.Context, providerName, fromPath string) string {
	origin := s.normalizeOrigin(fromPath)

	desc, err := s.registry.Get(providerName)
	if err != nil {
		return failureRedirect(origin, flowerrors.NewInvalidRequest(providerName))
	}

	inc(metrics.FlowsInitiatedTotal, providerName)

	creds := desc.Credentials()
	if selfReg, ok := desc.(provider.SelfRegistering); ok {
		creds, err = s.registrar.Ensure(ctx, selfReg, s.RedirectURI(providerName))
		if err != nil {
			log.Error().Err(err).Str("provider", providerName).Msg("Dynamic client registration failed")
			return failureRedirect(origin, flowerrors.NewInitFailed(providerName, "client registration failed"))
		}
	}

	state, err := provider.NewState()
	if err != nil {
		log.Error().Err(err).Str("provider", providerName).Msg("Failed to generate state")
		return failureRedirect(origin, flowerrors.NewInitFailed(providerName, "state generation failed"))
	}

	pending := domain.PendingAuthorizationContext{
		Provider:     providerName,
		State:        state,
		OriginalPath: origin,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		CreatedAt:    time.Now(),
	}

	var challenge string
	if desc.UsesPKCE() {
		verifier, ch, err := provider.NewPKCEPair()
		if err != nil {
			log.Error().Err(err).Str("provider", providerName).Msg("Failed to generate PKCE pair")
			return failureRedirect(origin, flowerrors.NewInitFailed(providerName, "pkce generation failed"))
		}
		pending.CodeVerifier = verifier
		challenge = ch
	}

	if err := cache.SetJSON(ctx, s.store, flowContextKeyPrefix+state, pending, s.flowTTL); err != nil {
		log.Error().Err(err).Str("provider", providerName).Msg("Failed to persist pending authorization context")
		return failureRedirect(origin, flowerrors.NewInitFailed(providerName, "context storage failed"))
	}

	return desc.AuthCodeURL(provider.AuthRequest{
		Credentials:   creds,
		RedirectURL:   s.RedirectURI(providerName),
		State:         state,
		CodeChallenge: challenge,
	})
}

// Callback processes the provider redirect and returns the URL the browser
// must be redirected to. Three reachable states: provider-reported error,
// authorization code, and malformed request.
func (s *FlowService) Callback(ctx context.Context, providerName string, params CallbackParams) string {
	switch {
	case params.Error != "":
		// Terminal: surface the provider's own error verbatim, no outbound
		// call of any kind.
		inc(metrics.FlowsCompletedTotal, providerName, "provider_error")
		desc := params.ErrorDescription
		if desc == "" {
			desc = params.Error
		}
		return failureRedirect(s.returnPath, flowerrors.NewProviderFailed(providerName, desc))
	case params.Code != "" && params.State != "":
		return s.exchange(ctx, providerName, params)
	default:
		inc(metrics.FlowsCompletedTotal, providerName, "invalid_request")
		return failureRedirect(s.returnPath, flowerrors.NewInvalidRequest(providerName))
	}
}

func (s *FlowService) exchange(ctx context.Context, providerName string, params CallbackParams) string {
	// Single-use consumption of the flow context. A missing entry means the
	// state is unknown, expired, or already spent; none of those reach token
	// exchange, which is the CSRF/replay defense.
	var pending domain.PendingAuthorizationContext
	if err := cache.TakeJSON(ctx, s.store, flowContextKeyPrefix+params.State, &pending); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Error().Err(err).Str("provider", providerName).Msg("Secure store lookup failed")
		}
		inc(metrics.FlowsCompletedTotal, providerName, "state_invalid")
		return failureRedirect(s.returnPath, flowerrors.NewCallbackFailed(providerName))
	}
	if pending.Provider != providerName {
		inc(metrics.FlowsCompletedTotal, providerName, "state_invalid")
		return failureRedirect(s.returnPath, flowerrors.NewCallbackFailed(providerName))
	}

	desc, err := s.registry.Get(providerName)
	if err != nil {
		inc(metrics.FlowsCompletedTotal, providerName, "invalid_request")
		return failureRedirect(pending.OriginalPath, flowerrors.NewInvalidRequest(providerName))
	}

	start := time.Now()
	bundle, err := desc.Exchange(ctx, provider.ExchangeRequest{
		Credentials:  provider.Credentials{ClientID: pending.ClientID, ClientSecret: pending.ClientSecret},
		RedirectURL:  s.RedirectURI(providerName),
		Code:         params.Code,
		CodeVerifier: pending.CodeVerifier,
	})
	observe(metrics.TokenExchangeDuration, providerName, time.Since(start))
	if err != nil {
		log.Warn().Err(err).Str("provider", providerName).Msg("Token exchange failed")
		inc(metrics.FlowsCompletedTotal, providerName, "exchange_failed")
		return failureRedirect(pending.OriginalPath, flowerrors.NewProviderFailed(providerName, "token exchange failed"))
	}

	if err := desc.Enrich(ctx, bundle); err != nil {
		log.Warn().Err(err).Str("provider", providerName).Msg("Post-exchange enrichment failed")
		inc(metrics.FlowsCompletedTotal, providerName, "enrichment_failed")
		if errors.Is(err, provider.ErrNoAccessibleResources) {
			return failureRedirect(pending.OriginalPath, flowerrors.NewNoAccessibleResources(providerName))
		}
		return failureRedirect(pending.OriginalPath, flowerrors.NewProviderFailed(providerName, "resource resolution failed"))
	}

	inc(metrics.FlowsCompletedTotal, providerName, "success")

	// Tokens travel only in the fragment, never the query string, so the
	// next navigation does not leak them to any server or access log.
	q := url.Values{"success": {providerName}}
	return pending.OriginalPath + "?" + q.Encode() + "#" + bundle.FragmentValues().Encode()
}

func (s *FlowService) normalizeOrigin(fromPath string) string {
	if fromPath == "" || !strings.HasPrefix(fromPath, "/") || strings.HasPrefix(fromPath, "//") {
		return s.returnPath
	}
	return fromPath
}

// failureRedirect builds the deterministic failure URL for an origin page.
func failureRedirect(origin string, rerr *flowerrors.RedirectError) string {
	q := url.Values{"error": {rerr.Code()}}
	if rerr.Description != "" {
		q.Set("error_description", rerr.Description)
	}
	return origin + "?" + q.Encode()
}

// inc and observe tolerate uninitialized metrics so unit tests need no
// Prometheus setup.
func inc(c *prometheus.CounterVec, labels ...string) {
	if c != nil {
		c.WithLabelValues(labels...).Inc()
	}
}

func observe(h *prometheus.HistogramVec, providerName string, d time.Duration) {
	if h != nil {
		h.WithLabelValues(providerName).Observe(d.Seconds())
	}
}
