package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pos-register/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	RecordFailedLogin(ctx context.Context, email string) (int, error)
	ResetFailedLogins(ctx context.Context, email string) error
	FailedLogins(ctx context.Context, email string) (*domain.LoginAttempt, error)
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, role, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, string_to_array(NULLIF($6, ''), ','), $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		strings.Join(user.Permissions, ","),
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "users_email_key") {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email = $1", email)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *userRepository) findOne(ctx context.Context, where string, arg interface{}) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, name, password_hash, role,
		       array_to_string(permissions, ','), created_at, updated_at
		FROM users
		WHERE %s
	`, where)

	user := &domain.User{}
	var permissions string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&permissions,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if permissions != "" {
		user.Permissions = strings.Split(permissions, ",")
	}

	return user, nil
}

// RecordFailedLogin increments the failure counter for an email and
// returns the new count.
func (r *userRepository) RecordFailedLogin(ctx context.Context, email string) (int, error) {
	query := `
		INSERT INTO login_attempts (email, failures, last_failure)
		VALUES ($1, 1, now())
		ON CONFLICT (email)
		DO UPDATE SET failures = login_attempts.failures + 1, last_failure = now()
		RETURNING failures
	`

	var failures int
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&failures); err != nil {
		return 0, fmt.Errorf("failed to record login failure: %w", err)
	}

	return failures, nil
}

func (r *userRepository) ResetFailedLogins(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}

func (r *userRepository) FailedLogins(ctx context.Context, email string) (*domain.LoginAttempt, error) {
	query := `SELECT email, failures, last_failure FROM login_attempts WHERE email = $1`

	attempt := &domain.LoginAttempt{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&attempt.Email,
		&attempt.Failures,
		&attempt.LastFailure,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return &domain.LoginAttempt{Email: email}, nil
		}
		return nil, fmt.Errorf("failed to load login failures: %w", err)
	}

	return attempt, nil
}
