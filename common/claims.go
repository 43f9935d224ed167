package common

import (
	"encoding/json"
	"time"

	"gopkg.in/square/go-jose.v2/jwt"
)

// The `aud` claim of a JWT token can be one of the following types:
// * string
// * []string
// Similarly to the https://github.com/coreos/go-oidc/blob/v3/oidc/oidc.go
// we introduce a custom UnmarshalJSON function that allows us to
// handle both types.
type Audience []string

func (a *Audience) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*a = Audience{s}
		return nil
	}
	var auds []string
	if err := json.Unmarshal(b, &auds); err != nil {
		return err
	}
	*a = auds
	return nil
}

// Contains reports whether aud is one of the token audiences.
func (a Audience) Contains(aud string) bool {
	for _, s := range a {
		if s == aud {
			return true
		}
	}
	return false
}

// Claims holds the subset of a verified access token that the service relies
// on. Fields not listed here are ignored when decoding.
type Claims struct {
	Issuer   string           `json:"iss"`
	Subject  string           `json:"sub"`
	Audience Audience         `json:"aud"`
	Expiry   *jwt.NumericDate `json:"exp,omitempty"`
	IssuedAt *jwt.NumericDate `json:"iat,omitempty"`

	// Permissions is only meaningful when HasPermissions returns true.
	Permissions []string `json:"permissions"`

	permissionsPresent bool
}

func (c *Claims) UnmarshalJSON(b []byte) error {
	type plain Claims
	var aux struct {
		plain
		Permissions *[]string `json:"permissions"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Claims(aux.plain)
	c.Permissions = nil
	c.permissionsPresent = aux.Permissions != nil
	if aux.Permissions != nil {
		c.Permissions = append([]string{}, (*aux.Permissions)...)
	}
	return nil
}

// HasPermissions tells apart a token that carries a (possibly empty)
// permissions claim from one that was not scoped for the API at all.
func (c *Claims) HasPermissions() bool {
	return c.permissionsPresent
}

// ExpiresAt returns the zero time when the token has no exp claim.
func (c *Claims) ExpiresAt() time.Time {
	if c.Expiry == nil {
		return time.Time{}
	}
	return c.Expiry.Time()
}

// Copy returns a deep copy, so callers may hold claims past the lifetime of
// a shared cache entry.
func (c *Claims) Copy() *Claims {
	out := *c
	if c.Audience != nil {
		out.Audience = append(Audience{}, c.Audience...)
	}
	if c.Permissions != nil {
		out.Permissions = append([]string{}, c.Permissions...)
	}
	if c.Expiry != nil {
		exp := *c.Expiry
		out.Expiry = &exp
	}
	if c.IssuedAt != nil {
		iat := *c.IssuedAt
		out.IssuedAt = &iat
	}
	return &out
}
