package authenticators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/patrickmn/go-cache"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/keyset"
	"github.com/coffeeshop/menu-service/svc"
)

const bearerScheme = "Bearer"

// JWTTokenAuthenticator verifies bearer access tokens issued by a single
// identity provider against a fixed signing key set.
type JWTTokenAuthenticator struct {
	Header    string // header name where the JWT access token is stored
	Audience  string
	Issuer    string
	Algorithm string
	KeySet    *keyset.KeySet

	verifier *oidc.IDTokenVerifier
	cache    *cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

type Option func(*JWTTokenAuthenticator)

// WithCache keeps verified claims for up to ttl, never past the token expiry.
func WithCache(ttl time.Duration) Option {
	return func(s *JWTTokenAuthenticator) {
		s.cache = cache.New(ttl, 2*ttl)
		s.cacheTTL = ttl
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *JWTTokenAuthenticator) {
		s.now = now
	}
}

func NewJWTTokenAuthenticator(
	header string,
	audience string,
	issuer string,
	algorithm string,
	keySet *keyset.KeySet,
	opts ...Option,
) *JWTTokenAuthenticator {
	s := &JWTTokenAuthenticator{
		Header:    header,
		Audience:  audience,
		Issuer:    issuer,
		Algorithm: algorithm,
		KeySet:    keySet,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.verifier = oidc.NewVerifier(issuer, keySet, &oidc.Config{
		ClientID:             audience,
		SupportedSigningAlgs: []string{algorithm},
		Now:                  s.now,
	})
	return s
}

// AuthenticateRequest verifies the bearer token carried by r.
func (s *JWTTokenAuthenticator) AuthenticateRequest(r *http.Request) (*common.Claims, error) {
	claims, err := s.Verify(r.Context(), r.Header.Get(s.Header))
	if err != nil {
		common.RequestLogger(r, "JWT access token authenticator").Debugf("Token rejected: %v", err)
	}
	return claims, err
}

// Verify validates the raw value of the authorization header and returns the
// decoded claims. Failures are always *svc.AuthError.
func (s *JWTTokenAuthenticator) Verify(ctx context.Context, headerValue string) (*common.Claims, error) {
	token, err := parseBearerHeader(headerValue)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, found := s.cache.Get(token); found {
			return cached.(*common.Claims).Copy(), nil
		}
	}

	claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		ttl := claims.ExpiresAt().Sub(s.now())
		if ttl > s.cacheTTL {
			ttl = s.cacheTTL
		}
		if ttl > 0 {
			s.cache.Set(token, claims.Copy(), ttl)
		}
	}
	return claims, nil
}

func (s *JWTTokenAuthenticator) verify(ctx context.Context, token string) (*common.Claims, error) {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, svc.WrapAuthError(svc.InvalidSignature, err, "bearer token is not a compact JWS")
	}
	if len(jws.Signatures) != 1 {
		return nil, svc.NewAuthError(svc.InvalidSignature,
			fmt.Sprintf("expected exactly one signature, got %d", len(jws.Signatures)))
	}

	kid := jws.Signatures[0].Header.KeyID
	if _, ok := s.KeySet.Lookup(kid); !ok {
		return nil, svc.NewAuthError(svc.UnknownKey,
			fmt.Sprintf("no signing key with kid %q", kid))
	}

	// Classify expiry and claim problems on the unverified payload first, so
	// callers learn why a token was rejected. Nothing is trusted until the
	// signature check below has passed.
	if err := s.performLocalChecks(jws.UnsafePayloadWithoutVerification()); err != nil {
		return nil, err
	}

	idToken, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, svc.WrapAuthError(svc.InvalidSignature, err, "token verification failed")
	}

	var claims common.Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, svc.WrapAuthError(svc.InvalidClaims, err, "failed to decode verified claims")
	}
	return &claims, nil
}

// performLocalChecks inspects the expiry, issuer and audience claims.
func (s *JWTTokenAuthenticator) performLocalChecks(payload []byte) error {
	var claims common.Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return svc.WrapAuthError(svc.InvalidClaims, err, "could not decode the token claims")
	}

	if claims.Expiry == nil {
		return svc.NewAuthError(svc.InvalidClaims, "token has no \"exp\" claim")
	}
	if !s.now().Before(claims.ExpiresAt()) {
		return svc.NewAuthError(svc.TokenExpired,
			fmt.Sprintf("token expired at %s", claims.ExpiresAt().UTC().Format(time.RFC3339)))
	}

	if claims.Issuer != s.Issuer {
		return svc.NewAuthError(svc.InvalidClaims,
			fmt.Sprintf("the retrieved \"iss\" %q did not match the expected one", claims.Issuer))
	}
	if !claims.Audience.Contains(s.Audience) {
		return svc.NewAuthError(svc.InvalidClaims,
			"the retrieved \"aud\" did not match the expected audience")
	}
	return nil
}

// parseBearerHeader extracts the token from a `Bearer <token>` value.
func parseBearerHeader(value string) (string, error) {
	if value == "" {
		return "", svc.NewAuthError(svc.MissingHeader, "authorization header is expected")
	}
	parts := strings.Fields(value)
	switch {
	case len(parts) == 0:
		return "", svc.NewAuthError(svc.MissingHeader, "authorization header is empty")
	case parts[0] != bearerScheme:
		return "", svc.NewAuthError(svc.MalformedHeader, "authorization header must start with \"Bearer\"")
	case len(parts) == 1:
		return "", svc.NewAuthError(svc.MalformedHeader, "token not found")
	case len(parts) > 2:
		return "", svc.NewAuthError(svc.MalformedHeader, "authorization header must be bearer token")
	}
	return parts[1], nil
}
