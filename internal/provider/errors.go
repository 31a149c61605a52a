package provider

import "errors"

var (
	ErrProviderNotFound      = errors.New("provider not found or not enabled")
	ErrProviderMisconfigured = errors.New("provider is misconfigured")
	ErrExchangeFailed        = errors.New("failed to exchange authorization code for token")
	ErrRegistrationFailed    = errors.New("failed to register dynamic OAuth client")
	ErrNoAccessibleResources = errors.New("no accessible resources granted for this authorization")
	ErrEnrichmentFailed      = errors.New("failed to resolve provider resource metadata")
)
