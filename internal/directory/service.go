package directory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"placement/internal/auth"
)

// Service provisions directory records on sign-in and applies profile and placement edits.
type Service struct {
	repo      Repository
	validator *profileValidator
	now       func() time.Time
}

// NewService wires a Service with the provided repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		validator: newProfileValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProvisionOrTouch creates the record for a first sign-in or records a repeat one.
// Existing role and profile fields are never changed here. Any store failure is
// reported as ErrUnavailable.
func (s *Service) ProvisionOrTouch(ctx context.Context, identity auth.Identity, role auth.Role) (User, error) {
	email := auth.NormalizeEmail(identity.Email)
	if email == "" {
		return User{}, auth.ErrAccessDenied
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("provision %s: invalid role %q", email, role)
	}

	now := s.now()
	user, err := s.repo.Get(ctx, email)
	switch {
	case err == nil:
		return s.touch(ctx, email, identity.AvatarURL, now)
	case !errors.Is(err, ErrNotFound):
		return User{}, unavailable("get", err)
	}

	user = User{
		ID:          uuid.New(),
		Email:       email,
		Name:        strings.TrimSpace(identity.DisplayName),
		AvatarURL:   identity.AvatarURL,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
	}
	created, err := s.repo.Create(ctx, user)
	if err == nil {
		return created, nil
	}
	if errors.Is(err, ErrAlreadyExists) {
		// Lost a concurrent first-login race; the winner's record stands.
		return s.touch(ctx, email, identity.AvatarURL, now)
	}
	return User{}, unavailable("create", err)
}

func (s *Service) touch(ctx context.Context, email, avatarURL string, at time.Time) (User, error) {
	user, err := s.repo.UpdateLogin(ctx, email, avatarURL, at)
	if err != nil {
		return User{}, unavailable("update login", err)
	}
	return user, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// Get returns the record for email.
func (s *Service) Get(ctx context.Context, email string) (User, error) {
	return s.repo.Get(ctx, auth.NormalizeEmail(email))
}

// UpdateProfile validates input and writes it to the caller's own record.
func (s *Service) UpdateProfile(ctx context.Context, callerEmail, targetEmail string, input ProfileUpdate) (User, error) {
	caller := auth.NormalizeEmail(callerEmail)
	target := auth.NormalizeEmail(targetEmail)
	if caller == "" || caller != target {
		return User{}, ErrForbidden
	}

	input = normalizeProfileUpdate(input)
	if err := s.validator.check(input); err != nil {
		return User{}, err
	}

	profile := input.profile()
	user, err := s.repo.UpdateProfile(ctx, target, profile, profile.Complete(), s.now())
	if err != nil {
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// ListStudents returns all student records ordered by email.
func (s *Service) ListStudents(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx, auth.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return users, nil
}

// SetPlacement marks a student as placed or not placed.
func (s *Service) SetPlacement(ctx context.Context, email string, placed bool) (User, error) {
	email = auth.NormalizeEmail(email)
	user, err := s.repo.Get(ctx, email)
	if err != nil {
		return User{}, err
	}
	if user.Role != auth.RoleStudent {
		return User{}, &ValidationError{Message: "placement can only be recorded for students"}
	}

	user, err = s.repo.UpdatePlacement(ctx, email, placed, s.now())
	if err != nil {
		return User{}, fmt.Errorf("update placement: %w", err)
	}
	return user, nil
}

// Summary aggregates the student population. AverageCGPA covers complete profiles only.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return Summary{}, err
	}
	return summarize(students), nil
}

func summarize(students []User) Summary {
	summary := Summary{
		TotalStudents: len(students),
		ByBranch:      make(map[string]int),
	}

	var cgpaTotal float64
	for _, student := range students {
		if student.IsProfileComplete {
			summary.CompleteProfiles++
			cgpaTotal += student.CGPA
		}
		if student.IsPlaced {
			summary.Placed++
		}
		if student.Branch != "" {
			summary.ByBranch[student.Branch]++
		}
	}

	summary.IncompleteProfiles = summary.TotalStudents - summary.CompleteProfiles
	if summary.CompleteProfiles > 0 {
		summary.AverageCGPA = math.Round(cgpaTotal/float64(summary.CompleteProfiles)*100) / 100
	}
	return summary
}
