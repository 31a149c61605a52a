package consumer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.flowdeck.io/connect/client"
	"go.flowdeck.io/connect/consumer"
	"go.flowdeck.io/connect/internal/provider"
)

func newRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(provider.NewNotionProvider("notion-id", "notion-secret"))
	registry.Register(provider.NewAtlassianProvider("atl-id", "atl-secret", nil))
	return registry
}

func TestParseFragment(t *testing.T) {
	vals := consumer.ParseFragment("#provider=notion&access_token=tok")
	assert.Equal(t, "notion", vals.Get("provider"))
	assert.Equal(t, "tok", vals.Get("access_token"))

	// Leading '#' is optional; malformed input parses as empty.
	assert.Equal(t, "notion", consumer.ParseFragment("provider=notion").Get("provider"))
	assert.Empty(t, consumer.ParseFragment("%zz"))
}

func TestConsumer_NotionBearerPayload(t *testing.T) {
	var got client.Integration
	var requests atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/integrations", r.URL.Path)
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"int-1","name":"Notion"}`))
	}))
	defer backend.Close()

	c := consumer.New(client.New(backend.URL), newRegistry(), "session-token", nil)
	err := c.Process(context.Background(), "#provider=notion&access_token=secret_tok&workspace_id=ws-1&workspace_name=Acme")
	require.NoError(t, err)

	assert.Equal(t, "Notion", got.Name)
	assert.EqualValues(t, "api_key", got.AuthType)
	assert.Equal(t, "notion", got.Type)
	assert.True(t, got.IsActive)
	assert.Equal(t, "secret_tok", got.Credentials["token"])
	assert.Equal(t, "ws-1", got.Credentials["workspace_id"])
	assert.True(t, c.Connected("notion"))
	assert.EqualValues(t, 1, requests.Load())
}

func TestConsumer_AtlassianOAuthPayload(t *testing.T) {
	var got client.Integration
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"int-2"}`))
	}))
	defer backend.Close()

	c := consumer.New(client.New(backend.URL), newRegistry(), "session-token", nil)
	fragment := "provider=atlassian&access_token=atl-access&refresh_token=atl-refresh&expires_in=3600&cloud_id=cloud-1&base_url=https%3A%2F%2Facme.atlassian.net"
	require.NoError(t, c.Process(context.Background(), fragment))

	assert.EqualValues(t, "oauth", got.AuthType)
	assert.Equal(t, "atl-access", got.Credentials["access_token"])
	assert.Equal(t, "atl-refresh", got.Credentials["refresh_token"])
	assert.Equal(t, "3600", got.Credentials["expires_in"])
	assert.Equal(t, "cloud-1", got.Credentials["cloud_id"])
	assert.Equal(t, "https://acme.atlassian.net", got.Credentials["base_url"])
}

func TestConsumer_EmptyFragmentIsNoOp(t *testing.T) {
	var requests atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	c := consumer.New(client.New(backend.URL), newRegistry(), "session-token", nil)

	require.NoError(t, c.Process(context.Background(), ""))
	require.NoError(t, c.Process(context.Background(), "#"))
	assert.EqualValues(t, 0, requests.Load())
}

func TestConsumer_DuplicateFragmentIsNoOp(t *testing.T) {
	var requests atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	c := consumer.New(client.New(backend.URL), newRegistry(), "session-token", nil)
	fragment := "#provider=notion&access_token=tok&workspace_id=ws-1"

	require.NoError(t, c.Process(context.Background(), fragment))
	// Re-delivery of the same fragment (e.g. history-replace raced a reload)
	// must not create a second integration.
	require.NoError(t, c.Process(context.Background(), fragment))
	assert.EqualValues(t, 1, requests.Load())
}

func TestConsumer_BackendFailureLeavesDisconnected(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	var notified []string
	var notifiedErr error
	c := consumer.New(client.New(backend.URL), newRegistry(), "session-token", func(p string, err error) {
		notified = append(notified, p)
		notifiedErr = err
	})

	err := c.Process(context.Background(), "#provider=notion&access_token=tok")
	require.Error(t, err)
	assert.False(t, c.Connected("notion"))
	assert.Equal(t, []string{"notion"}, notified)
	assert.Error(t, notifiedErr)
}
