package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.flowdeck.io/connect/cache"
	"go.flowdeck.io/connect/internal/provider"
	"go.flowdeck.io/connect/services"
)

func TestRegistrationService_RegistersOnce(t *testing.T) {
	var registrations atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		registrations.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"client_id":"dyn-client","client_secret":"dyn-secret"}`))
	}))
	defer server.Close()

	original := provider.AtlassianMCPRegistrationEndpoint
	provider.AtlassianMCPRegistrationEndpoint = server.URL
	defer func() { provider.AtlassianMCPRegistrationEndpoint = original }()

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	registrar := services.NewRegistrationService(store, time.Hour)
	p := provider.NewAtlassianMCPProvider("flowdeck-test", nil)

	creds, err := registrar.Ensure(context.Background(), p, "https://app.example.com/api/auth/atlassian-mcp")
	require.NoError(t, err)
	assert.Equal(t, "dyn-client", creds.ClientID)

	// Second call hits the cache.
	creds, err = registrar.Ensure(context.Background(), p, "https://app.example.com/api/auth/atlassian-mcp")
	require.NoError(t, err)
	assert.Equal(t, "dyn-client", creds.ClientID)

	assert.EqualValues(t, 1, registrations.Load())
}

func TestRegistrationService_ConcurrentFirstRequestsSingleFlight(t *testing.T) {
	var registrations atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		registrations.Add(1)
		// Hold the request open long enough for every goroutine to pile up.
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"client_id":"dyn-client"}`))
	}))
	defer server.Close()

	original := provider.AtlassianMCPRegistrationEndpoint
	provider.AtlassianMCPRegistrationEndpoint = server.URL
	defer func() { provider.AtlassianMCPRegistrationEndpoint = original }()

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	registrar := services.NewRegistrationService(store, time.Hour)
	p := provider.NewAtlassianMCPProvider("flowdeck-test", nil)

	const workers = 10
	var wg sync.WaitGroup
	results := make([]provider.Credentials, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = registrar.Ensure(context.Background(), p, "https://app.example.com/api/auth/atlassian-mcp")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "dyn-client", results[i].ClientID)
	}
	assert.EqualValues(t, 1, registrations.Load())
}

func TestRegistrationService_FailureIsNotCached(t *testing.T) {
	var registrations atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if registrations.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"client_id":"dyn-client"}`))
	}))
	defer server.Close()

	original := provider.AtlassianMCPRegistrationEndpoint
	provider.AtlassianMCPRegistrationEndpoint = server.URL
	defer func() { provider.AtlassianMCPRegistrationEndpoint = original }()

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	registrar := services.NewRegistrationService(store, time.Hour)
	p := provider.NewAtlassianMCPProvider("flowdeck-test", nil)

	_, err := registrar.Ensure(context.Background(), p, "https://app.example.com/api/auth/atlassian-mcp")
	require.Error(t, err)

	// A fresh user-initiated flow gets a clean attempt.
	creds, err := registrar.Ensure(context.Background(), p, "https://app.example.com/api/auth/atlassian-mcp")
	require.NoError(t, err)
	assert.Equal(t, "dyn-client", creds.ClientID)
}
