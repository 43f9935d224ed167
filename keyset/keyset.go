// Package keyset holds the identity provider's public signing keys.
//
// A KeySet is built once, either from a JWKS document fetched at startup or
// from keys handed in directly, and is never modified afterwards. It can be
// shared by any number of concurrent requests without locking.
package keyset

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coreos/go-oidc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/svc"
)

// ErrKeyNotFound is returned by VerifySignature when the token's kid is not
// part of the set.
var ErrKeyNotFound = errors.New("keyset: no key matches the token kid")

type KeySet struct {
	keys map[string]jose.JSONWebKey
}

var _ oidc.KeySet = &KeySet{}

// New builds a KeySet from the given keys. Every key needs a unique kid.
func New(keys ...jose.JSONWebKey) (*KeySet, error) {
	m := make(map[string]jose.JSONWebKey, len(keys))
	for _, k := range keys {
		if k.KeyID == "" {
			return nil, errors.New("keyset: key without kid")
		}
		if _, dup := m[k.KeyID]; dup {
			return nil, errors.Errorf("keyset: duplicate kid %q", k.KeyID)
		}
		if k.IsPublic() {
			m[k.KeyID] = k
		} else {
			m[k.KeyID] = k.Public()
		}
	}
	return &KeySet{keys: m}, nil
}

// Lookup returns the public key registered under kid.
func (s *KeySet) Lookup(kid string) (jose.JSONWebKey, bool) {
	k, ok := s.keys[kid]
	return k, ok
}

func (s *KeySet) Len() int {
	return len(s.keys)
}

// KeyIDs returns the sorted key identifiers, for logging.
func (s *KeySet) KeyIDs() []string {
	ids := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		ids = append(ids, kid)
	}
	sort.Strings(ids)
	return ids
}

// VerifySignature implements oidc.KeySet. It checks the JWS signature with
// the key named by the protected header and returns the signed payload.
func (s *KeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	jws, err := jose.ParseSigned(jwt)
	if err != nil {
		return nil, errors.Wrap(err, "keyset: malformed jwt")
	}
	if len(jws.Signatures) != 1 {
		return nil, errors.Errorf("keyset: expected exactly one signature, got %d", len(jws.Signatures))
	}
	key, ok := s.Lookup(jws.Signatures[0].Header.KeyID)
	if !ok {
		return nil, ErrKeyNotFound
	}
	payload, err := jws.Verify(&key)
	if err != nil {
		return nil, errors.Wrap(err, "keyset: failed to verify signature")
	}
	return payload, nil
}

// Parse builds a KeySet from a JWKS document. Keys meant for encryption are
// skipped.
func Parse(raw []byte) (*KeySet, error) {
	var doc jose.JSONWebKeySet
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "keyset: failed to decode JWKS document")
	}
	keys := make([]jose.JSONWebKey, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, errors.New("keyset: JWKS document has no signing keys")
	}
	return New(keys...)
}

// Fetch downloads and parses the JWKS document at jwksURL. The HTTP client
// stored in ctx under oauth2.HTTPClient is used when present.
func Fetch(ctx context.Context, jwksURL string) (*KeySet, error) {
	req, err := http.NewRequest(http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "keyset: failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := common.DoRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "keyset: failed to fetch %s", jwksURL)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "keyset: failed to read JWKS response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &svc.RequestError{
			Response: resp,
			Body:     body,
			Err:      errors.Errorf("keyset: fetching %s failed", jwksURL),
		}
	}
	return Parse(body)
}

// FetchWithRetry calls Fetch with exponential backoff until it succeeds or
// maxElapsed passes. Malformed documents are not retried.
func FetchWithRetry(ctx context.Context, jwksURL string, maxElapsed time.Duration) (*KeySet, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	var ks *KeySet
	op := func() error {
		var err error
		ks, err = Fetch(ctx, jwksURL)
		if err == nil {
			return nil
		}
		var reqErr *svc.RequestError
		if errors.As(err, &reqErr) || isTransportError(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		log.Warnf("Fetching JWKS from %s failed, retrying in %v: %v", jwksURL, next, err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return ks, nil
}

// isTransportError reports whether err came from the HTTP round trip rather
// than from decoding the document.
func isTransportError(err error) bool {
	var urlErr interface{ Timeout() bool }
	return errors.As(err, &urlErr)
}
