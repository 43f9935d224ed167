package authenticators

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/coffeeshop/menu-service/keyset/keysettest"
	"github.com/coffeeshop/menu-service/svc"
)

func newTestAuthenticator(t *testing.T, a *keysettest.Authority, opts ...Option) *JWTTokenAuthenticator {
	return NewJWTTokenAuthenticator(
		"Authorization",
		keysettest.Audience,
		keysettest.Issuer,
		"RS256",
		a.KeySet(t),
		opts...,
	)
}

// tamper flips one byte of the signature segment.
func tamper(t *testing.T, token string) string {
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[len(sig)/2] ^= 0xff
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}

func signHS256(t *testing.T, kid string, claims interface{}) string {
	opts := (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", kid)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte("not-so-secret")}, opts)
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	require.NoError(t, err)
	return raw
}

func TestParseBearerHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		kind   svc.AuthFailureKind
	}{
		{name: "valid", header: "Bearer abc.def.ghi", token: "abc.def.ghi"},
		{name: "empty", header: "", kind: svc.MissingHeader},
		{name: "whitespace only", header: "   ", kind: svc.MissingHeader},
		{name: "wrong scheme", header: "Malformed abc", kind: svc.MalformedHeader},
		{name: "lowercase scheme", header: "bearer abc", kind: svc.MalformedHeader},
		{name: "scheme only", header: "Bearer", kind: svc.MalformedHeader},
		{name: "token only", header: "abc.def.ghi", kind: svc.MalformedHeader},
		{name: "three parts", header: "Bearer abc def", kind: svc.MalformedHeader},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			token, err := parseBearerHeader(test.header)
			if test.kind == 0 {
				require.NoError(t, err)
				require.Equal(t, test.token, token)
				return
			}
			require.True(t, svc.IsAuthFailure(err, test.kind), "got %v", err)
			require.Empty(t, token)
		})
	}
}

func TestVerify(t *testing.T) {
	a := keysettest.NewAuthority(t, "key-a")
	stranger := keysettest.NewAuthority(t, "key-z")
	impostor := keysettest.NewAuthority(t, "key-a")
	s := newTestAuthenticator(t, a)

	expired := keysettest.Claims(time.Now().Add(-time.Minute))
	expired["permissions"] = []string{"post:drinks"}

	wrongIssuer := keysettest.Claims(time.Now().Add(time.Hour))
	wrongIssuer["iss"] = "https://evil.test/"

	wrongAudience := keysettest.Claims(time.Now().Add(time.Hour))
	wrongAudience["aud"] = "other-api"

	noExpiry := keysettest.Claims(time.Now())
	delete(noExpiry, "exp")

	tests := []struct {
		name   string
		header string
		kind   svc.AuthFailureKind
	}{
		{name: "missing header", header: "", kind: svc.MissingHeader},
		{name: "malformed header", header: "Malformed abc", kind: svc.MalformedHeader},
		{name: "three part header", header: "Bearer " + a.Token(t) + " extra", kind: svc.MalformedHeader},
		{name: "not a jwt", header: "Bearer not-a-jwt", kind: svc.InvalidSignature},
		{name: "unknown key", header: "Bearer " + stranger.Token(t, "post:drinks"), kind: svc.UnknownKey},
		{name: "expired", header: "Bearer " + a.Sign(t, expired), kind: svc.TokenExpired},
		{name: "expired with bad signature", header: "Bearer " + tamper(t, a.Sign(t, expired)), kind: svc.TokenExpired},
		{name: "wrong issuer", header: "Bearer " + a.Sign(t, wrongIssuer), kind: svc.InvalidClaims},
		{name: "wrong audience", header: "Bearer " + a.Sign(t, wrongAudience), kind: svc.InvalidClaims},
		{name: "no expiry", header: "Bearer " + a.Sign(t, noExpiry), kind: svc.InvalidClaims},
		{name: "tampered signature", header: "Bearer " + tamper(t, a.Token(t)), kind: svc.InvalidSignature},
		{name: "kid reused by another key", header: "Bearer " + impostor.Token(t), kind: svc.InvalidSignature},
		{name: "symmetric algorithm", header: "Bearer " + signHS256(t, "key-a", keysettest.Claims(time.Now().Add(time.Hour))), kind: svc.InvalidSignature},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			claims, err := s.Verify(context.Background(), test.header)
			require.Nil(t, claims)
			require.True(t, svc.IsAuthFailure(err, test.kind), "expected %v, got %v", test.kind, err)
		})
	}
}

func TestVerifyValidToken(t *testing.T) {
	a := keysettest.NewAuthority(t, "key-a")
	s := newTestAuthenticator(t, a)
	token := a.Token(t, "get:drinks-detail", "post:drinks")

	claims, err := s.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, keysettest.Issuer, claims.Issuer)
	require.Equal(t, "auth0|barista", claims.Subject)
	require.True(t, claims.Audience.Contains(keysettest.Audience))
	require.True(t, claims.HasPermissions())
	require.Equal(t, []string{"get:drinks-detail", "post:drinks"}, claims.Permissions)

	again, err := s.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, claims, again, "verification must be idempotent")
}

func TestVerifyWithoutPermissionsClaim(t *testing.T) {
	a := keysettest.NewAuthority(t, "key-a")
	s := newTestAuthenticator(t, a)

	claims, err := s.Verify(context.Background(), "Bearer "+a.Sign(t, keysettest.Claims(time.Now().Add(time.Hour))))
	require.NoError(t, err)
	require.False(t, claims.HasPermissions())
}

func TestVerifyClock(t *testing.T) {
	a := keysettest.NewAuthority(t, "key-a")
	token := a.Token(t)

	future := func() time.Time { return time.Now().Add(2 * time.Hour) }
	s := newTestAuthenticator(t, a, WithClock(future))

	_, err := s.Verify(context.Background(), "Bearer "+token)
	require.True(t, svc.IsAuthFailure(err, svc.TokenExpired))
}

func TestVerifyCache(t *testing.T) {
	a := keysettest.NewAuthority(t, "key-a")
	s := newTestAuthenticator(t, a, WithCache(time.Minute))
	token := a.Token(t, "patch:drinks")

	first, err := s.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, 1, s.cache.ItemCount())

	// Mutating a returned claim set must not leak into later requests.
	first.Permissions[0] = "delete:drinks"

	second, err := s.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, []string{"patch:drinks"}, second.Permissions)

	_, err = s.Verify(context.Background(), "Bearer "+tamper(t, token))
	require.True(t, svc.IsAuthFailure(err, svc.InvalidSignature))
	require.Equal(t, 1, s.cache.ItemCount(), "failed verifications are not cached")
}

func TestAuthenticateRequest(t *testing.T) {
	a := keysettest.NewAuthority(t, "key-a")
	s := newTestAuthenticator(t, a)

	r := httptest.NewRequest("GET", "/drinks-detail", nil)
	_, err := s.AuthenticateRequest(r)
	require.True(t, svc.IsAuthFailure(err, svc.MissingHeader))

	r.Header.Set("Authorization", "Bearer "+a.Token(t, "get:drinks-detail"))
	claims, err := s.AuthenticateRequest(r)
	require.NoError(t, err)
	require.Equal(t, []string{"get:drinks-detail"}, claims.Permissions)
}
