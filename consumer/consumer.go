// Package consumer turns a post-callback URL fragment into a persisted
// backend integration. It is the final hop of the connection flow: parse the
// fragment, create the integration, flip the in-memory connected flag, and
// treat the fragment as spent so a re-delivery is a no-op.
package consumer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.flowdeck.io/connect/client"
	"go.flowdeck.io/connect/domain"
	"go.flowdeck.io/connect/internal/metrics"
	"go.flowdeck.io/connect/internal/provider"
)

var displayNames = map[string]string{
	"notion":        "Notion",
	"atlassian":     "Atlassian",
	"atlassian-mcp": "Atlassian (MCP)",
	"github":        "GitHub",
	"figma":         "Figma",
	"slack":         "Slack",
	"sentry":        "Sentry",
}

// Notifier is invoked after each processed fragment; err is nil on success.
// The dashboard surfaces it as a toast.
type Notifier func(providerName string, err error)

// Consumer processes token fragments for one user session.
type Consumer struct {
	backend      *client.Client
	registry     *provider.Registry
	sessionToken string
	notify       Notifier

	mu        sync.Mutex
	connected map[string]bool
	consumed  map[string]struct{}
}

// New creates a Consumer. notify may be nil.
func New(backend *client.Client, registry *provider.Registry, sessionToken string, notify Notifier) *Consumer {
	return &Consumer{
		backend:      backend,
		registry:     registry,
		sessionToken: sessionToken,
		notify:       notify,
		connected:    make(map[string]bool),
		consumed:     make(map[string]struct{}),
	}
}

// ParseFragment parses a URL fragment (with or without its leading '#') into
// key/value pairs. Malformed fragments parse as empty.
func ParseFragment(fragment string) url.Values {
	fragment = strings.TrimPrefix(fragment, "#")
	vals, err := url.ParseQuery(fragment)
	if err != nil {
		return url.Values{}
	}
	return vals
}

// Process consumes one fragment. A fragment without a provider key is a
// no-op, which makes the second call after fragment removal idempotent. The
// fragment is marked consumed before the backend call so a re-delivered copy
// cannot create a duplicate integration; a failed creation leaves the
// connection state unchanged.
func (c *Consumer) Process(ctx context.Context, fragment string) error {
	vals := ParseFragment(fragment)
	providerName := vals.Get("provider")
	if providerName == "" {
		return nil
	}

	fp := fingerprint(vals)
	c.mu.Lock()
	if _, done := c.consumed[fp]; done {
		c.mu.Unlock()
		return nil
	}
	c.consumed[fp] = struct{}{}
	c.mu.Unlock()

	integration, err := c.buildIntegration(providerName, vals)
	if err != nil {
		c.report(providerName, err)
		return err
	}

	if _, err := c.backend.CreateIntegration(ctx, c.sessionToken, integration); err != nil {
		incCreated(providerName, "failure")
		c.report(providerName, err)
		return fmt.Errorf("failed to create %s integration: %w", providerName, err)
	}
	incCreated(providerName, "success")

	c.mu.Lock()
	c.connected[providerName] = true
	c.mu.Unlock()
	c.report(providerName, nil)

	return nil
}

// Connected reports whether an integration for providerName was persisted in
// this session.
func (c *Consumer) Connected(providerName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected[providerName]
}

func (c *Consumer) buildIntegration(providerName string, vals url.Values) (*client.Integration, error) {
	desc, err := c.registry.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("fragment names unknown provider %q: %w", providerName, err)
	}

	name := displayNames[providerName]
	if name == "" {
		name = providerName
	}

	creds := map[string]string{}
	switch desc.AuthType() {
	case domain.AuthTypeAPIKey:
		creds["token"] = vals.Get("access_token")
	case domain.AuthTypeOAuth:
		creds["access_token"] = vals.Get("access_token")
		if v := vals.Get("refresh_token"); v != "" {
			creds["refresh_token"] = v
		}
		if v := vals.Get("expires_in"); v != "" {
			creds["expires_in"] = v
		}
	}
	// Provider-specific auxiliary fields ride along untouched.
	for _, key := range []string{"workspace_id", "workspace_name", "bot_id", "cloud_id", "base_url", "scope"} {
		if v := vals.Get(key); v != "" {
			creds[key] = v
		}
	}

	return &client.Integration{
		Name:        name,
		AuthType:    desc.AuthType(),
		Type:        providerName,
		IsActive:    true,
		Credentials: creds,
	}, nil
}

func (c *Consumer) report(providerName string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("provider", providerName).Msg("Integration creation failed")
	}
	if c.notify != nil {
		c.notify(providerName, err)
	}
}

func fingerprint(vals url.Values) string {
	sum := sha256.Sum256([]byte(vals.Encode()))
	return hex.EncodeToString(sum[:])
}

func incCreated(providerName, outcome string) {
	if metrics.IntegrationsCreatedTotal != nil {
		metrics.IntegrationsCreatedTotal.WithLabelValues(providerName, outcome).Inc()
	}
}
