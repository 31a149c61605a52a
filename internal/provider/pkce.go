package provider

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// NewState generates a single-use, unguessable state value (256 bits of
// entropy) binding the callback to the request that initiated it.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewPKCEPair generates an RFC 7636 verifier/challenge pair. The verifier is
// 64 characters of the unreserved base64url alphabet, within the mandated
// 43-128 range; the challenge is always the S256 derivation.
func NewPKCEPair() (verifier, challenge string, err error) {
	b := make([]byte, 48)
	if _, err = rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(b)
	return verifier, ChallengeS256(verifier), nil
}

// ChallengeS256 derives the S256 code challenge for a verifier:
// base64url(sha256(verifier)), unpadded.
func ChallengeS256(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// VerifyChallenge reports whether a verifier matches a previously issued
// S256 challenge.
func VerifyChallenge(challenge, verifier string) bool {
	return challenge == ChallengeS256(verifier)
}
