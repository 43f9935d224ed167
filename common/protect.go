package common

import (
	"encoding"
	"encoding/json"
	"fmt"
)

const protectedPlaceholder = "<protected>"

// ProtectedString holds a secret, such as the Redis password, and hides it
// from fmt and JSON so that logging the whole Config is safe.
type ProtectedString struct {
	value *string
}

func NewProtectedString(val string) *ProtectedString {
	return &ProtectedString{value: &val}
}

// Reveal returns the secret value. A nil or unset ProtectedString reveals "".
func (p *ProtectedString) Reveal() string {
	if p == nil || p.value == nil {
		return ""
	}
	return *p.value
}

func (p *ProtectedString) String() string {
	return protectedPlaceholder
}

var _ fmt.Stringer = (*ProtectedString)(nil)

func (p *ProtectedString) MarshalJSON() ([]byte, error) {
	return json.Marshal(protectedPlaceholder)
}

var _ json.Marshaler = (*ProtectedString)(nil)

// UnmarshalText lets envconfig populate the value from the environment.
func (p *ProtectedString) UnmarshalText(text []byte) error {
	val := string(text)
	p.value = &val
	return nil
}

var _ encoding.TextUnmarshaler = (*ProtectedString)(nil)
