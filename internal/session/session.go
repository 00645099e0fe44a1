// Package session issues and verifies the signed tokens that carry a signed-in user's
// email and role between requests.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"placement/internal/auth"
)

// MinSecretLength is the minimum signing secret size in bytes.
const MinSecretLength = 32

// ErrInvalidSession is returned for any token that is malformed, tampered with, expired,
// issued by someone else or carries an unknown role.
var ErrInvalidSession = errors.New("invalid session")

// Claims is the verified content of a session token.
type Claims struct {
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens. It holds no mutable state.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer validates the signing configuration.
func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if issuer == "" {
		return nil, errors.New("session issuer is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for email with the given role.
func (i *Issuer) Issue(email string, role auth.Role) (string, Claims, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return "", Claims{}, errors.New("issue session: email is required")
	}
	if !role.Valid() {
		return "", Claims{}, fmt.Errorf("issue session: invalid role %q", role)
	}

	now := i.now().UTC().Truncate(time.Second)
	expires := now.Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, Claims{Email: email, Role: role, IssuedAt: now, ExpiresAt: expires}, nil
}

// Verify checks the signature, algorithm, issuer and expiry of a token.
func (i *Issuer) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidSession
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidSession
	}

	role := auth.Role(claims.Role)
	email := auth.NormalizeEmail(claims.Email)
	if !role.Valid() || email == "" || claims.IssuedAt == nil {
		return Claims{}, ErrInvalidSession
	}

	return Claims{
		Email:     email,
		Role:      role,
		IssuedAt:  claims.IssuedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
	}, nil
}

// ShouldRefresh reports whether less than half of the token's lifetime remains.
func (i *Issuer) ShouldRefresh(claims Claims) bool {
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt)
	if lifetime <= 0 {
		return false
	}
	return claims.ExpiresAt.Sub(i.now()) < lifetime/2
}
