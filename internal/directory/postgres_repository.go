package directory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"placement/internal/auth"
)

const userColumns = `id, email, name, avatar_url, role, phone, branch, cgpa, resume_url, github_url,
	linkedin_url, is_profile_complete, is_placed, created_at, updated_at, last_login_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get looks up a record by email.
func (r *PostgresRepository) Get(ctx context.Context, email string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return row.toUser(), nil
}

// Create inserts a new record. The unique email constraint decides concurrent first logins.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (email) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		string(user.Role),
		user.Phone,
		user.Branch,
		user.CGPA,
		user.ResumeURL,
		user.GitHubURL,
		user.LinkedInURL,
		user.IsProfileComplete,
		user.IsPlaced,
		user.CreatedAt,
		user.UpdatedAt,
		user.LastLoginAt,
	)
	if err != nil {
		return User{}, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return User{}, err
	}
	if affected == 0 {
		return User{}, ErrAlreadyExists
	}
	return user, nil
}

// UpdateLogin refreshes the avatar and last login time.
func (r *PostgresRepository) UpdateLogin(ctx context.Context, email, avatarURL string, at time.Time) (User, error) {
	const query = `
		UPDATE users
		SET avatar_url = $2, last_login_at = $3
		WHERE email = $1
		RETURNING ` + userColumns

	return r.updateReturning(ctx, query, email, avatarURL, at)
}

// UpdateProfile writes the profile fields and completeness flag in one statement.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, email string, profile Profile, complete bool, at time.Time) (User, error) {
	const query = `
		UPDATE users
		SET phone = $2, branch = $3, cgpa = $4, resume_url = $5, github_url = $6, linkedin_url = $7,
			is_profile_complete = $8, updated_at = $9
		WHERE email = $1
		RETURNING ` + userColumns

	return r.updateReturning(ctx, query,
		email,
		profile.Phone,
		profile.Branch,
		profile.CGPA,
		profile.ResumeURL,
		profile.GitHubURL,
		profile.LinkedInURL,
		complete,
		at,
	)
}

// UpdatePlacement sets the placed flag.
func (r *PostgresRepository) UpdatePlacement(ctx context.Context, email string, placed bool, at time.Time) (User, error) {
	const query = `
		UPDATE users
		SET is_placed = $2, updated_at = $3
		WHERE email = $1
		RETURNING ` + userColumns

	return r.updateReturning(ctx, query, email, placed, at)
}

// List returns every record with the given role ordered by email.
func (r *PostgresRepository) List(ctx context.Context, role auth.Role) ([]User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY email`

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query, string(role)); err != nil {
		return nil, err
	}

	users := make([]User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toUser())
	}
	return users, nil
}

func (r *PostgresRepository) updateReturning(ctx context.Context, query string, args ...any) (User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return row.toUser(), nil
}

// userRow is a database row representation of User.
type userRow struct {
	ID                uuid.UUID `db:"id"`
	Email             string    `db:"email"`
	Name              string    `db:"name"`
	AvatarURL         string    `db:"avatar_url"`
	Role              string    `db:"role"`
	Phone             string    `db:"phone"`
	Branch            string    `db:"branch"`
	CGPA              float64   `db:"cgpa"`
	ResumeURL         string    `db:"resume_url"`
	GitHubURL         string    `db:"github_url"`
	LinkedInURL       string    `db:"linkedin_url"`
	IsProfileComplete bool      `db:"is_profile_complete"`
	IsPlaced          bool      `db:"is_placed"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
	LastLoginAt       time.Time `db:"last_login_at"`
}

func (r *userRow) toUser() User {
	return User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		AvatarURL: r.AvatarURL,
		Role:      auth.Role(r.Role),
		Profile: Profile{
			Phone:       r.Phone,
			Branch:      r.Branch,
			CGPA:        r.CGPA,
			ResumeURL:   r.ResumeURL,
			GitHubURL:   r.GitHubURL,
			LinkedInURL: r.LinkedInURL,
		},
		IsProfileComplete: r.IsProfileComplete,
		IsPlaced:          r.IsPlaced,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		LastLoginAt:       r.LastLoginAt,
	}
}
