package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/pkg/crypto"
	apperrors "github.com/driftlinehq/driftline-site/pkg/errors"
)

// MinPasswordLength is the policy minimum for admin passwords.
const MinPasswordLength = 8

var (
	// ErrIncorrectCurrentPassword is returned when a password change presents
	// the wrong current password.
	ErrIncorrectCurrentPassword = apperrors.New(
		"INCORRECT_CURRENT_PASSWORD", "Current password is incorrect", http.StatusBadRequest)
	// ErrPasswordTooShort rejects passwords below the policy minimum.
	ErrPasswordTooShort = apperrors.New(
		"VALIDATION_ERROR", "Password must be at least 8 characters", http.StatusBadRequest)
)

// CredentialService verifies and mutates admin credentials. Lookups fail
// closed: any database error is reported as invalid credentials to callers.
type CredentialService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCredentialService constructs a credential service.
func NewCredentialService(db *gorm.DB) (*CredentialService, error) {
	if db == nil {
		return nil, errors.New("credential service: db is required")
	}
	return &CredentialService{db: db, now: time.Now}, nil
}

// Verify checks a username/password pair and returns the matching admin.
// Absence, lookup errors, and hash mismatches are indistinguishable.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (*models.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var admin models.AdminUser
	if err := s.db.WithContext(ctx).Where("username = ?", username).Take(&admin).Error; err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(admin.PasswordHash, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return &admin, nil
}

// TouchLogin records a successful login on the admin record.
func (s *CredentialService) TouchLogin(ctx context.Context, adminID string) error {
	now := s.now()
	return s.db.WithContext(ctx).
		Model(&models.AdminUser{}).
		Where("id = ?", adminID).
		Update("last_login_at", now).Error
}

// ChangePassword re-verifies the current password before accepting a new one.
// Re-verification defends against a hijacked session replaying a stale login.
func (s *CredentialService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	admin, err := s.Verify(ctx, username, currentPassword)
	if err != nil {
		return ErrIncorrectCurrentPassword
	}

	return s.SetPassword(ctx, admin.ID, newPassword)
}

// SetPassword validates and persists a new password hash for the admin.
func (s *CredentialService) SetPassword(ctx context.Context, adminID, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("credential service: hash password: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.AdminUser{}).
		Where("id = ?", adminID).
		Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("credential service: update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// FindByUsername fetches an admin record, returning gorm.ErrRecordNotFound
// untouched so callers can implement anti-enumeration behaviour themselves.
func (s *CredentialService) FindByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
