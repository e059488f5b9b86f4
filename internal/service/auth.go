// Package service provides business-logic services for authentication and
// the chat turn pipeline, delegating persistence to repository interfaces.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/prepchat/prepchat/internal/models"
)

// AuthRepository defines the persistence operations required by the
// authentication service.
type AuthRepository interface {
	// CreateUser inserts a new user record. Returns
	// models.ErrDuplicateUser if the username is taken.
	CreateUser(ctx context.Context, user models.User) error
	// FindByUsername fetches a user by username, or (nil, nil) when no
	// such user exists.
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthService implements signup and login by delegating to an
// AuthRepository.
type AuthService struct {
	// repo performs the data-layer operations.
	repo AuthRepository
}

// NewAuthService constructs a new AuthService using the provided
// repository.
func NewAuthService(repo AuthRepository) *AuthService {
	return &AuthService{repo: repo}
}

// Register creates a new user with a bcrypt-hashed password and returns
// the generated user ID. Returns models.ErrDuplicateUser when the
// username is already taken.
func (s *AuthService) Register(ctx context.Context, username, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return "", err
	}
	return user.ID, nil
}

// Login verifies the credentials and returns the user's ID. Any mismatch,
// including an unknown username, yields models.ErrInvalidCredentials with
// no further detail.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}
	return user.ID, nil
}
