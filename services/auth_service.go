package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iete-tsec/ascension-registration/models"
	"github.com/iete-tsec/ascension-registration/repositories"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Login(ctx context.Context, creds models.Credentials) (*models.Admin, error)
	// EnsureAdmin creates the seed admin account if it does not exist yet.
	EnsureAdmin(ctx context.Context, email, password string) error
}

type authService struct {
	adminRepo repositories.AdminRepository
	logger    *slog.Logger
}

func NewAuthService(adminRepo repositories.AdminRepository, logger *slog.Logger) AuthService {
	return &authService{
		adminRepo: adminRepo,
		logger:    logger,
	}
}

func (s *authService) Login(ctx context.Context, creds models.Credentials) (*models.Admin, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find admin by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(creds.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	admin.PasswordHash = ""
	return admin, nil
}

func (s *authService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.adminRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrAdminNotFound) {
		return fmt.Errorf("failed to look up seed admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed admin password: %w", err)
	}

	admin := &models.Admin{Email: email, PasswordHash: string(hash)}
	if err = s.adminRepo.Create(ctx, admin); err != nil {
		// Another instance may have seeded it concurrently.
		if errors.Is(err, repositories.ErrAdminEmailConflict) {
			return nil
		}
		return fmt.Errorf("failed to create seed admin: %w", err)
	}

	s.logger.Info("seed admin account created", slog.String("email", email))
	return nil
}
