package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.flowdeck.io/connect/cache"
	"go.flowdeck.io/connect/domain"
	"go.flowdeck.io/connect/internal/metrics"
	"go.flowdeck.io/connect/internal/provider"
	"golang.org/x/sync/singleflight"
)

const (
	defaultClientCredsTTL = 30 * 24 * time.Hour

	dynamicClientKeyPrefix = "dynclient:"
)

// RegistrationService manages dynamically-registered OAuth clients. A
// provider is registered at most once per credential cache lifetime; the
// singleflight group collapses concurrent first-time requests so two flows
// racing on a cold cache cannot double-register.
type RegistrationService struct {
	store cache.Store
	group singleflight.Group
	ttl   time.Duration
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(store cache.Store, ttl time.Duration) *RegistrationService {
	if ttl <= 0 {
		ttl = defaultClientCredsTTL
	}
	return &RegistrationService{
		store: store,
		ttl:   ttl,
	}
}

// Ensure returns the cached client credentials for a self-registering
// provider, registering a new client if none are cached. Registration
// failures are not retried here; the user restarts the flow.
func (s *RegistrationService) Ensure(ctx context.Context, p provider.SelfRegistering, redirectURL string) (provider.Credentials, error) {
	key := dynamicClientKeyPrefix + p.Name()

	var creds domain.DynamicClientCredentials
	err := cache.GetJSON(ctx, s.store, key, &creds)
	if err == nil {
		return provider.Credentials{ClientID: creds.ClientID, ClientSecret: creds.ClientSecret}, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return provider.Credentials{}, err
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have already
		// registered and populated the cache.
		var cached domain.DynamicClientCredentials
		if err := cache.GetJSON(ctx, s.store, key, &cached); err == nil {
			return &cached, nil
		}

		registered, err := p.Register(ctx, redirectURL)
		if err != nil {
			inc(metrics.ClientRegistrationsTotal, p.Name(), "failure")
			return nil, err
		}
		inc(metrics.ClientRegistrationsTotal, p.Name(), "success")
		log.Info().Str("provider", p.Name()).Str("client_id", registered.ClientID).
			Msg("Registered dynamic OAuth client")

		if err := cache.SetJSON(ctx, s.store, key, registered, s.ttl); err != nil {
			// The client exists at the provider even if caching failed; use
			// it for this flow and let the next one re-register.
			log.Warn().Err(err).Str("provider", p.Name()).Msg("Failed to cache dynamic client credentials")
		}
		return registered, nil
	})
	if err != nil {
		return provider.Credentials{}, err
	}

	registered := v.(*domain.DynamicClientCredentials)
	return provider.Credentials{ClientID: registered.ClientID, ClientSecret: registered.ClientSecret}, nil
}
