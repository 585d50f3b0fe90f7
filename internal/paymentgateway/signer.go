package paymentgateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Convention selects how the merchant secret enters the signed string.
type Convention string

const (
	// ConventionPasswordField injects the secret as a Password field that
	// takes part in key sorting.
	ConventionPasswordField Convention = "password_field"
	// ConventionTrailing appends the secret after the canonical string.
	ConventionTrailing Convention = "trailing"
)

const passwordField = "Password"

func ParseConvention(s string) (Convention, error) {
	switch Convention(s) {
	case "", ConventionPasswordField:
		return ConventionPasswordField, nil
	case ConventionTrailing:
		return ConventionTrailing, nil
	default:
		return "", fmt.Errorf("unknown signature convention %q", s)
	}
}

type Signer struct {
	secret     string
	convention Convention
	opts       CanonicalOptions
}

func NewSigner(secret string, convention Convention, opts CanonicalOptions) *Signer {
	if convention == "" {
		convention = ConventionPasswordField
	}
	return &Signer{secret: secret, convention: convention, opts: opts}
}

// Sign returns the lowercase hex SHA-256 token for v.
func (s *Signer) Sign(v any) (string, error) {
	fields, err := ToFields(v)
	if err != nil {
		return "", err
	}

	var payload string
	switch s.convention {
	case ConventionTrailing:
		canonical, err := Canonical(fields, s.opts)
		if err != nil {
			return "", err
		}
		payload = canonical + s.secret
	default:
		withSecret := fields.Clone()
		withSecret[passwordField] = s.secret
		payload, err = Canonical(withSecret, s.opts)
		if err != nil {
			return "", err
		}
	}

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the token of fields without their Token and compares it
// with the received one. A missing or non-string token never verifies.
func (s *Signer) Verify(fields Fields) bool {
	received, ok := fields[TokenField].(string)
	if !ok || received == "" {
		return false
	}

	stripped := fields.Clone()
	delete(stripped, TokenField)

	expected, err := s.Sign(stripped)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
