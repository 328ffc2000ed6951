package users

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/quantlens/quantlens/backend/gateway/internal/models"
)

// ErrInvalidCredentials is returned for both unknown users and bad passwords
// so callers cannot probe which usernames exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service encapsulates user-related business logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// Authenticate verifies the password against the stored bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, u *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return s.repo.Create(ctx, u)
}
