package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned for any credential mismatch. Callers
// must not distinguish unknown identity from wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies login credentials and yields the authenticated
// identity string. Swapping the implementation is enough to move from the
// fixed single-identity deployment to a real identity provider.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// FixedCredential authenticates exactly one configured identity against a
// bcrypt password hash.
type FixedCredential struct {
	email        string
	passwordHash string
}

// NewFixedCredential builds the single-identity authenticator.
func NewFixedCredential(email, passwordHash string) (*FixedCredential, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("auth email: %w", err)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("auth password hash is required")
	}
	return &FixedCredential{email: normalized, passwordHash: passwordHash}, nil
}

// Authenticate checks the supplied credentials against the fixed identity.
func (f *FixedCredential) Authenticate(ctx context.Context, email, password string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("authenticator is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if normalized != f.email {
		// Same bcrypt cost on the unknown-identity path.
		_ = VerifyPassword(f.passwordHash, password)
		return "", ErrInvalidCredentials
	}
	if !VerifyPassword(f.passwordHash, password) {
		return "", ErrInvalidCredentials
	}
	return f.email, nil
}
