package provider_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.flowdeck.io/connect/domain"
	"go.flowdeck.io/connect/internal/provider"
)

func TestNotionProvider_AuthCodeURL(t *testing.T) {
	p := provider.NewNotionProvider("notion-id", "notion-secret")

	raw := p.AuthCodeURL(provider.AuthRequest{
		Credentials: p.Credentials(),
		RedirectURL: "https://app.example.com/api/auth/notion",
		State:       "S",
	})
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "notion-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "S", q.Get("state"))
	assert.Equal(t, "user", q.Get("owner"))
	assert.Equal(t, "https://app.example.com/api/auth/notion", q.Get("redirect_uri"))
}

func TestNotionProvider_Exchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Notion authenticates the exchange with HTTP Basic, JSON body.
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("notion-id:notion-secret"))
		assert.Equal(t, expected, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "authorization_code", body["grant_type"])
		assert.Equal(t, "C", body["code"])
		assert.Equal(t, "https://app.example.com/api/auth/notion", body["redirect_uri"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "secret_bot_token",
			"token_type": "bearer",
			"bot_id": "bot-1",
			"workspace_id": "ws-1",
			"workspace_name": "Acme"
		}`))
	}))
	defer server.Close()

	original := provider.NotionTokenEndpoint
	provider.NotionTokenEndpoint = server.URL
	defer func() { provider.NotionTokenEndpoint = original }()

	p := provider.NewNotionProvider("notion-id", "notion-secret")
	bundle, err := p.Exchange(context.Background(), provider.ExchangeRequest{
		Credentials: p.Credentials(),
		RedirectURL: "https://app.example.com/api/auth/notion",
		Code:        "C",
	})
	require.NoError(t, err)

	assert.Equal(t, "notion", bundle.Provider)
	assert.Equal(t, domain.AuthTypeAPIKey, p.AuthType())
	assert.Equal(t, "secret_bot_token", bundle.AccessToken)
	assert.Equal(t, "ws-1", bundle.Extra["workspace_id"])
	assert.Equal(t, "Acme", bundle.Extra["workspace_name"])
	assert.Equal(t, "bot-1", bundle.Extra["bot_id"])
}

func TestNotionProvider_ExchangeNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	original := provider.NotionTokenEndpoint
	provider.NotionTokenEndpoint = server.URL
	defer func() { provider.NotionTokenEndpoint = original }()

	p := provider.NewNotionProvider("notion-id", "notion-secret")
	_, err := p.Exchange(context.Background(), provider.ExchangeRequest{
		Credentials: p.Credentials(),
		Code:        "C",
	})
	assert.ErrorIs(t, err, provider.ErrExchangeFailed)
}
