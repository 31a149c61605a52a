package provider_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.flowdeck.io/connect/internal/provider"
)

func TestNewPKCEPair(t *testing.T) {
	verifier, challenge, err := provider.NewPKCEPair()
	require.NoError(t, err)

	// RFC 7636: verifier length must be within 43-128 characters.
	assert.GreaterOrEqual(t, len(verifier), 43)
	assert.LessOrEqual(t, len(verifier), 128)

	h := sha256.Sum256([]byte(verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(h[:]), challenge)
	assert.True(t, provider.VerifyChallenge(challenge, verifier))
	assert.False(t, provider.VerifyChallenge(challenge, verifier+"x"))
}

func TestNewPKCEPair_Unique(t *testing.T) {
	v1, _, err := provider.NewPKCEPair()
	require.NoError(t, err)
	v2, _, err := provider.NewPKCEPair()
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestNewState(t *testing.T) {
	s1, err := provider.NewState()
	require.NoError(t, err)
	s2, err := provider.NewState()
	require.NoError(t, err)

	// 32 random bytes encode to 43 unpadded base64url characters.
	assert.Len(t, s1, 43)
	assert.NotEqual(t, s1, s2)
}
