package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/auth"
	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/pkg/crypto"
	apperrors "github.com/driftlinehq/driftline-site/pkg/errors"
	"github.com/driftlinehq/driftline-site/pkg/logger"
	"github.com/driftlinehq/driftline-site/pkg/mail"
)

const (
	defaultResetExpiry     = time.Hour
	defaultResetTokenBytes = 32
)

// ErrInvalidOrExpiredToken rejects unknown, consumed, and expired reset tokens
// uniformly so callers cannot probe which of the three it was.
var ErrInvalidOrExpiredToken = apperrors.New(
	"INVALID_OR_EXPIRED_TOKEN", "Reset token is invalid or has expired", http.StatusBadRequest)

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetBaseURL sets the base URL used in reset links.
func WithResetBaseURL(url string) ResetOption {
	return func(s *PasswordResetService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithResetExpiry overrides the token lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetTokenSize adjusts the number of random bytes in generated tokens.
func WithResetTokenSize(size int) ResetOption {
	return func(s *PasswordResetService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PasswordResetService issues and consumes single-use password reset tokens.
// Only token hashes are persisted; the plaintext token travels by email once.
type PasswordResetService struct {
	db          *gorm.DB
	credentials *auth.CredentialService
	mailer      mail.Mailer
	baseURL     string
	expiry      time.Duration
	tokenLength int
	now         func() time.Time
	log         *zap.Logger
}

// NewPasswordResetService constructs a reset service with the provided dependencies.
func NewPasswordResetService(db *gorm.DB, credentials *auth.CredentialService, mailer mail.Mailer, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}
	if credentials == nil {
		return nil, errors.New("password reset service: credential service is required")
	}

	service := &PasswordResetService{
		db:          db,
		credentials: credentials,
		mailer:      mailer,
		expiry:      defaultResetExpiry,
		tokenLength: defaultResetTokenBytes,
		now:         time.Now,
		log:         logger.WithModule("password-reset"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Request issues a reset token for the username and emails the reset link.
// The response is identical whether or not the account exists, and a failed
// email dispatch is swallowed for the same reason: neither account existence
// nor delivery problems may be observable from the outside.
func (s *PasswordResetService) Request(ctx context.Context, username string) error {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}

	admin, err := s.credentials.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Debug("reset requested for unknown username")
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset service: lookup admin: %w", err)
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	now := s.now()
	record := models.PasswordResetToken{
		AdminUserID: admin.ID,
		TokenHash:   crypto.HashToken(token),
		ExpiresAt:   now.Add(s.expiry),
	}

	// Earlier outstanding tokens stay valid; each expires on its own clock.
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("password reset service: store token: %w", err)
	}

	if s.mailer == nil {
		s.log.Warn("no mailer configured, reset token issued but not delivered")
		return nil
	}

	message := mail.Message{
		To:      []string{admin.Email},
		Subject: "Reset your Driftline admin password",
		Body:    s.resetBody(s.resetLink(token)),
	}
	if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
		s.log.Warn("failed to send password reset email", zap.Error(mailErr))
	}

	return nil
}

// Reset consumes a token and sets a new password for its admin. The token
// hash is the lookup key; used and expired records are rejected the same way
// as unknown ones.
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	var record models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(token)).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("password reset service: find token: %w", err)
	}

	now := s.now()
	if !record.Consumable(now) {
		return ErrInvalidOrExpiredToken
	}

	if len(newPassword) < auth.MinPasswordLength {
		return auth.ErrPasswordTooShort
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AdminUser{}).
			Where("id = ?", record.AdminUserID).
			Update("password_hash", hash).Error; err != nil {
			return fmt.Errorf("password reset service: update password: %w", err)
		}

		if err := tx.Model(&record).
			Update("used_at", now).Error; err != nil {
			return fmt.Errorf("password reset service: mark used: %w", err)
		}

		return nil
	})
}

// CleanupExpired deletes tokens that can never be consumed again: consumed
// ones and those past expiry. Returns the number of rows removed.
func (s *PasswordResetService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at <= ? OR used_at IS NOT NULL", s.now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("password reset service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *PasswordResetService) resetLink(token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s/admin/reset-password?token=%s", s.baseURL, token)
}

func (s *PasswordResetService) resetBody(link string) string {
	return fmt.Sprintf("You requested to reset your Driftline admin password.\n\nVisit the link below to choose a new one:\n%s\n\nThe link expires in %s. If you did not request this reset, you can ignore this message.\n", link, s.expiry)
}
