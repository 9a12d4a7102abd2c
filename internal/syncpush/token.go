// Package syncpush receives authenticated bulk pushes from a local
// agent and keeps the pushed snapshot on disk.
package syncpush

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidFormat = errors.New("invalid_format")
)

// TokenService validates push credentials. Three forms are accepted:
// the configured plaintext token, a bcrypt hash of it, or a short-lived
// agent token minted by this service. Validation never reveals which
// comparison failed.
type TokenService struct {
	Token     string // exact shared secret
	TokenHash string // bcrypt hash, checked when set
	Secret    []byte // HS256 key for minted agent tokens
	Issuer    string
	Duration  time.Duration
}

type AgentClaims struct {
	Agent string `json:"agent"`
	jwt.RegisteredClaims
}

// Enabled reports whether any credential is configured. With none, the
// push endpoint refuses everything.
func (ts TokenService) Enabled() bool {
	return ts.Token != "" || ts.TokenHash != ""
}

// Authorize checks an Authorization header value.
func (ts TokenService) Authorize(header string) error {
	if !ts.Enabled() {
		return ErrUnauthorized
	}
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ErrUnauthorized
	}
	raw := strings.TrimSpace(header[len("Bearer "):])
	if raw == "" {
		return ErrUnauthorized
	}

	if ts.TokenHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(ts.TokenHash), []byte(raw)) == nil {
			return nil
		}
	}
	if ts.Token != "" {
		if subtle.ConstantTimeCompare([]byte(ts.Token), []byte(raw)) == 1 {
			return nil
		}
	}
	if len(ts.Secret) > 0 {
		if _, err := ts.Parse(raw); err == nil {
			return nil
		}
	}
	return ErrUnauthorized
}

// Mint signs a short-lived token an agent can use instead of the
// shared secret.
func (ts TokenService) Mint(agent string) (string, time.Time, error) {
	exp := time.Now().Add(ts.Duration)

	claims := AgentClaims{
		Agent: agent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   agent,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (ts TokenService) Parse(tokenString string) (*AgentClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AgentClaims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*AgentClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
