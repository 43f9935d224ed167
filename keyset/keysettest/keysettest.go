// Package keysettest provides an in-process signing authority for tests:
// an RSA key pair, the matching KeySet, and helpers to mint access tokens.
package keysettest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/coffeeshop/menu-service/keyset"
)

const (
	Issuer   = "https://coffeeshop.test/"
	Audience = "drinks"
)

type Authority struct {
	KeyID string
	key   *rsa.PrivateKey
}

// NewAuthority generates a fresh 2048 bit RSA key identified by kid.
func NewAuthority(t testing.TB, kid string) *Authority {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "generating RSA key")
	return &Authority{KeyID: kid, key: key}
}

// PublicKey returns the JWK that verifies this authority's tokens.
func (a *Authority) PublicKey() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       &a.key.PublicKey,
		KeyID:     a.KeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}
}

// KeySet returns a KeySet containing only this authority's public key.
func (a *Authority) KeySet(t testing.TB) *keyset.KeySet {
	t.Helper()
	ks, err := keyset.New(a.PublicKey())
	require.NoError(t, err)
	return ks
}

// JWKS returns the JSON Web Key Set document served by this authority.
func (a *Authority) JWKS(t testing.TB) []byte {
	t.Helper()
	raw, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{a.PublicKey()}})
	require.NoError(t, err)
	return raw
}

// Sign serializes claims into a compact RS256 JWS with this authority's kid.
func (a *Authority) Sign(t testing.TB, claims interface{}) string {
	t.Helper()
	opts := (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", a.KeyID)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: a.key}, opts)
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	require.NoError(t, err)
	return raw
}

// Token signs the standard claims for Issuer/Audience, valid for an hour,
// with the given permissions claim.
func (a *Authority) Token(t testing.TB, permissions ...string) string {
	t.Helper()
	claims := Claims(time.Now().Add(time.Hour))
	claims["permissions"] = permissions
	if permissions == nil {
		claims["permissions"] = []string{}
	}
	return a.Sign(t, claims)
}

// Claims returns a mutable claim map for Issuer/Audience expiring at exp.
func Claims(exp time.Time) map[string]interface{} {
	now := time.Now()
	return map[string]interface{}{
		"iss": Issuer,
		"sub": "auth0|barista",
		"aud": []string{Audience, Issuer + "userinfo"},
		"iat": now.Add(-time.Minute).Unix(),
		"exp": exp.Unix(),
	}
}
