package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"placement/internal/auth"
)

// InMemoryRepository stores records in an in-process map, for local development and tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[string]User
}

// NewInMemoryRepository constructs a repository seeded with optional initial records.
func NewInMemoryRepository(initial []User) *InMemoryRepository {
	data := make(map[string]User, len(initial))
	for _, user := range initial {
		data[user.Email] = user
	}
	return &InMemoryRepository{data: data}
}

// Get returns the record for email.
func (r *InMemoryRepository) Get(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.data[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// Create stores a new record unless the email is already present.
func (r *InMemoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[user.Email]; exists {
		return User{}, ErrAlreadyExists
	}
	r.data[user.Email] = user
	return user, nil
}

// UpdateLogin records a sign-in.
func (r *InMemoryRepository) UpdateLogin(_ context.Context, email, avatarURL string, at time.Time) (User, error) {
	return r.mutate(email, func(u *User) {
		u.AvatarURL = avatarURL
		u.LastLoginAt = at
	})
}

// UpdateProfile replaces the profile fields and completeness flag.
func (r *InMemoryRepository) UpdateProfile(_ context.Context, email string, profile Profile, complete bool, at time.Time) (User, error) {
	return r.mutate(email, func(u *User) {
		u.Profile = profile
		u.IsProfileComplete = complete
		u.UpdatedAt = at
	})
}

// UpdatePlacement sets the placed flag.
func (r *InMemoryRepository) UpdatePlacement(_ context.Context, email string, placed bool, at time.Time) (User, error) {
	return r.mutate(email, func(u *User) {
		u.IsPlaced = placed
		u.UpdatedAt = at
	})
}

// List returns every record with the given role.
func (r *InMemoryRepository) List(_ context.Context, role auth.Role) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]User, 0, len(r.data))
	for _, user := range r.data {
		if user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (r *InMemoryRepository) mutate(email string, apply func(*User)) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.data[email]
	if !ok {
		return User{}, ErrNotFound
	}
	apply(&user)
	r.data[email] = user
	return user, nil
}
