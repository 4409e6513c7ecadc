package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func TestVerify(t *testing.T) {
	checker := NewCredentialChecker(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "dashboard-ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	subject, err := checker.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "dashboard-ops" {
		t.Errorf("subject = %q, want dashboard-ops", subject)
	}
}

func TestVerify_Rejections(t *testing.T) {
	checker := NewCredentialChecker(testSecret)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signToken(t, "some-other-secret", jwt.MapClaims{"sub": "dashboard-ops"})
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{
					"sub": "dashboard-ops",
					"exp": time.Now().Add(-time.Hour).Unix(),
				})
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{
					"exp": time.Now().Add(time.Hour).Unix(),
				})
			},
		},
		{
			name: "unsigned algorithm",
			token: func(t *testing.T) string {
				token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
					"sub": "dashboard-ops",
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatalf("signing token: %v", err)
				}
				return token
			},
		},
		{
			name: "garbage",
			token: func(t *testing.T) string {
				return "not.a.token"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checker.Verify(tt.token(t))
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
