package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL matches the original deployment's two-hour sessions.
const DefaultSessionTTL = 2 * time.Hour

const minSecretLength = 16

// Session is a verified session token's payload.
type Session struct {
	Identity  string
	ExpiresAt time.Time
}

// TokenManager issues and verifies signed, time-limited session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a token manager with an HS256 signing secret.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", minSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (m *TokenManager) TTL() time.Duration {
	if m == nil {
		return 0
	}
	return m.ttl
}

// Issue creates a signed session token for identity.
func (m *TokenManager) Issue(identity string, now time.Time) (string, time.Time, error) {
	if m == nil {
		return "", time.Time{}, fmt.Errorf("token manager is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", time.Time{}, fmt.Errorf("identity is required")
	}

	expiresAt := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses and validates a session token, returning its payload.
func (m *TokenManager) Verify(token string, now time.Time) (*Session, error) {
	if m == nil {
		return nil, fmt.Errorf("token manager is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid session token")
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &Session{Identity: claims.Subject, ExpiresAt: expiresAt}, nil
}
