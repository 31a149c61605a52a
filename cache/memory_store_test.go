package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.flowdeck.io/connect/cache"
)

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 80*time.Millisecond))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	time.Sleep(150 * time.Millisecond)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemoryStore_GetAndDeleteIsSingleUse(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	val, err := store.GetAndDelete(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	_, err = store.GetAndDelete(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemoryStore_IndependentTTLClasses(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	// Minutes-scale flow context and weeks-scale client credentials coexist.
	require.NoError(t, store.Set(ctx, "flow", []byte("short"), 60*time.Millisecond))
	require.NoError(t, store.Set(ctx, "creds", []byte("long"), time.Hour))

	time.Sleep(120 * time.Millisecond)

	_, err := store.Get(ctx, "flow")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	val, err := store.Get(ctx, "creds")
	require.NoError(t, err)
	assert.Equal(t, []byte("long"), val)
}

func TestStoreJSONHelpers(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}

	require.NoError(t, cache.SetJSON(ctx, store, "p", payload{Name: "notion"}, time.Minute))

	var out payload
	require.NoError(t, cache.TakeJSON(ctx, store, "p", &out))
	assert.Equal(t, "notion", out.Name)

	err := cache.TakeJSON(ctx, store, "p", &out)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}
