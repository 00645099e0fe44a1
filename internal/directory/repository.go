package directory

import (
	"context"
	"time"

	"placement/internal/auth"
)

// Repository is the document store behind the directory, keyed by canonical email.
// Every write either lands completely or returns an error.
type Repository interface {
	// Get returns ErrNotFound when the email has no record.
	Get(ctx context.Context, email string) (User, error)
	// Create inserts user if its email is free and returns ErrAlreadyExists otherwise.
	// It is the serialization point for concurrent first logins.
	Create(ctx context.Context, user User) (User, error)
	// UpdateLogin sets only the avatar and last login time.
	UpdateLogin(ctx context.Context, email, avatarURL string, at time.Time) (User, error)
	UpdateProfile(ctx context.Context, email string, profile Profile, complete bool, at time.Time) (User, error)
	UpdatePlacement(ctx context.Context, email string, placed bool, at time.Time) (User, error)
	// List returns every record with the given role ordered by email.
	List(ctx context.Context, role auth.Role) ([]User, error)
}
