package gateway

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Credential errors.
var (
	// ErrInvalidToken is returned for tokens that fail signature or claim
	// validation, including expired tokens.
	ErrInvalidToken = errors.New("gateway: invalid token")
)

// CredentialChecker validates dashboard bearer tokens.
//
// Dashboards authenticate with an HMAC-signed JWT issued elsewhere; this
// service only verifies. Devices carry no token at all: the trust boundary is
// deliberately asymmetric, and device identity is the self-declared device ID.
type CredentialChecker struct {
	secret []byte
}

// NewCredentialChecker creates a checker for the given signing secret.
func NewCredentialChecker(secret string) *CredentialChecker {
	return &CredentialChecker{secret: []byte(secret)}
}

// Verify validates a token and returns its subject claim.
//
// Only HMAC signing methods are accepted; a token signed with anything else
// (including "none") fails before signature verification.
func (c *CredentialChecker) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return subject, nil
}
