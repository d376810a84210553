package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	principalRepo ports.PrincipalRepository
	hashSvc       ports.HashService
	tokenSvc      ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	principalRepo ports.PrincipalRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		principalRepo: principalRepo,
		hashSvc:       hashSvc,
		tokenSvc:      tokenSvc,
	}
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	principal, err := s.principalRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find principal: %w", err))
	}
	if principal == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	// Verify password
	valid, err := s.hashSvc.Verify(password, principal.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	// Generate JWT
	token, expiry, err := s.tokenSvc.Generate(principal.ID, principal.Username, principal.Roles)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

// Profile returns the principal's own account record.
func (s *AuthServiceImpl) Profile(ctx context.Context, principalID uuid.UUID) (*domain.Principal, error) {
	principal, err := s.principalRepo.GetByID(ctx, principalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find principal: %w", err))
	}
	if principal == nil {
		return nil, apperror.ErrNotFound("principal")
	}
	return principal, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, principalID uuid.UUID, oldPassword, newPassword string) error {
	principal, err := s.principalRepo.GetByID(ctx, principalID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find principal: %w", err))
	}
	if principal == nil {
		return apperror.ErrNotFound("principal")
	}

	valid, err := s.hashSvc.Verify(oldPassword, principal.PasswordHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return apperror.ErrInvalidCredentials()
	}

	newHash, err := s.hashSvc.Hash(newPassword)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	if err := s.principalRepo.UpdatePassword(ctx, principalID, newHash); err != nil {
		return apperror.InternalError(fmt.Errorf("update password: %w", err))
	}
	return nil
}
