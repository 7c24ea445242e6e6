package users

import (
	"context"
	"errors"

	"siglo-backend/internal/application/auth"
	"siglo-backend/internal/domain"
	roles "siglo-backend/internal/pkg/constants"
	"siglo-backend/internal/pkg/validation"

	"gorm.io/gorm"
)

var (
	ErrInvalidEmail    = errors.New("Invalid email format")
	ErrInvalidPassword = errors.New("Password must have at least 8 characters including a letter, a number and a symbol")
	ErrInvalidFullName = errors.New("Full name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)")
	ErrInvalidRole     = errors.New("Invalid role")
	ErrEmailTaken      = errors.New("Email already registered")
)

// Service holds DB for user account operations.
type Service struct {
	DB *gorm.DB
}

// CreateUserInput is the registration payload. Role is ignored for
// self-registration and defaults to CLIENT.
type CreateUserInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates a CLIENT account.
func (s *Service) Register(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Role = roles.Client
	return s.Create(ctx, in)
}

// Create creates an account with the given role (seed, admin tooling).
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	email := validation.NormalizeEmail(in.Email)
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrInvalidPassword
	}
	if !validation.IsValidFullName(in.FullName) {
		return nil, ErrInvalidFullName
	}
	role := roles.NormalizeRole(in.Role)
	if role == "" {
		role = roles.Client
	}
	if !roles.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:        email,
		FullName:     validation.NormalizeFullName(in.FullName),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureAdmin creates the admin account when no user holds the email yet.
// It reports whether a row was created.
func (s *Service) EnsureAdmin(ctx context.Context, fullName, email, password string) (bool, error) {
	_, err := s.Create(ctx, CreateUserInput{FullName: fullName, Email: email, Password: password, Role: roles.Admin})
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	return err == nil, err
}

// List returns every account ordered by sign-up date.
func (s *Service) List(ctx context.Context, role string) ([]domain.User, error) {
	q := s.DB.WithContext(ctx).Order("created_at ASC, id ASC")
	if role = roles.NormalizeRole(role); role != "" {
		if !roles.IsValidRole(role) {
			return nil, ErrInvalidRole
		}
		q = q.Where("role = ?", role)
	}
	var out []domain.User
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
