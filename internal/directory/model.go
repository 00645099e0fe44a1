package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"placement/internal/auth"
)

var (
	// ErrNotFound is returned when no record exists for an email.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned by Repository.Create when the email is taken.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrUnavailable means the store could not be read or written during sign-in.
	// Callers must treat it as a denial.
	ErrUnavailable = errors.New("directory unavailable")
	// ErrForbidden is returned when a caller edits a record that is not their own.
	ErrForbidden = errors.New("cannot modify another user's profile")
	// ErrValidation is returned when profile input validation fails.
	ErrValidation = errors.New("validation error")
)

// ValidationError wraps a validation message so callers can distinguish
// client errors from internal failures.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Branches lists the academic branches a student may select.
var Branches = []string{"CSE", "IT", "ECE", "MECH", "EEE", "CIVIL"}

// Profile holds the student-facing fields. Every record carries them, admins included.
type Profile struct {
	Phone       string  `json:"phone"`
	Branch      string  `json:"branch"`
	CGPA        float64 `json:"cgpa"`
	ResumeURL   string  `json:"resumeUrl"`
	GitHubURL   string  `json:"githubUrl"`
	LinkedInURL string  `json:"linkedinUrl"`
}

// Complete reports whether every field required for placement drives is filled in.
func (p Profile) Complete() bool {
	return p.Phone != "" && p.Branch != "" && p.CGPA > 0 && p.ResumeURL != ""
}

// User is the durable directory record for one email.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl"`
	Role      auth.Role `json:"role"`

	Profile
	IsProfileComplete bool `json:"isProfileComplete"`
	IsPlaced          bool `json:"isPlaced"`

	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// ProfileUpdate is the payload of a profile edit.
type ProfileUpdate struct {
	Phone       string   `json:"phone" validate:"required,phone"`
	Branch      string   `json:"branch" validate:"required,branch"`
	CGPA        *float64 `json:"cgpa" validate:"required,gte=0,lte=10"`
	ResumeURL   string   `json:"resumeUrl" validate:"omitempty,http_url,max=2048"`
	GitHubURL   string   `json:"githubUrl" validate:"omitempty,http_url,max=2048"`
	LinkedInURL string   `json:"linkedinUrl" validate:"omitempty,http_url,max=2048"`
}

func (u ProfileUpdate) profile() Profile {
	p := Profile{
		Phone:       u.Phone,
		Branch:      u.Branch,
		ResumeURL:   u.ResumeURL,
		GitHubURL:   u.GitHubURL,
		LinkedInURL: u.LinkedInURL,
	}
	if u.CGPA != nil {
		p.CGPA = *u.CGPA
	}
	return p
}

// Summary aggregates the student population for the admin dashboard.
type Summary struct {
	TotalStudents      int            `json:"totalStudents"`
	CompleteProfiles   int            `json:"completeProfiles"`
	IncompleteProfiles int            `json:"incompleteProfiles"`
	Placed             int            `json:"placed"`
	AverageCGPA        float64        `json:"averageCgpa"`
	ByBranch           map[string]int `json:"byBranch"`
}
