package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/pkg/crypto"
	"github.com/driftlinehq/driftline-site/pkg/metrics"
)

// DefaultSessionTTL is the fallback admin session lifetime.
const DefaultSessionTTL = 24 * time.Hour

var (
	// ErrSessionNotFound indicates that no session matches the provided token.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionRevoked marks a session that has been revoked by logout.
	ErrSessionRevoked = errors.New("session: revoked")
	// ErrSessionExpired signals that a session token has reached its expiry.
	ErrSessionExpired = errors.New("session: expired")
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TTL         time.Duration
	TokenLength int
	Clock       func() time.Time
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// SessionService manages creation, validation, and revocation of admin sessions.
// Tokens are opaque random strings carried in an HTTP-only cookie.
type SessionService struct {
	db       *gorm.DB
	ttl      time.Duration
	tokenLen int
	now      func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	length := cfg.TokenLength
	if length <= 0 {
		length = 48
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:       db,
		ttl:      ttl,
		tokenLen: length,
		now:      clock,
	}, nil
}

// TTL exposes the configured session lifetime, used for cookie max-age.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create issues a new session for the admin and persists it.
func (s *SessionService) Create(ctx context.Context, adminID string, meta SessionMetadata) (*models.Session, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, errors.New("session service: admin id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return nil, fmt.Errorf("session service: generate token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		AdminUserID: adminID,
		TokenHash:   crypto.HashToken(token),
		IPAddress:   strings.TrimSpace(meta.IPAddress),
		UserAgent:   strings.TrimSpace(meta.UserAgent),
		ExpiresAt:   now.Add(s.ttl),
		LastUsedAt:  now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	// The plaintext token leaves the process exactly once, in the cookie.
	session.Token = token

	return session, nil
}

// Validate resolves a cookie token to an active session and touches its
// last-used timestamp. Unknown, revoked, and expired tokens return distinct
// sentinel errors; handlers normalise all of them to 401.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where("token_hash = ?", crypto.HashToken(token)).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: lookup: %w", err)
	}

	now := s.now()
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if !now.Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	if err := s.db.WithContext(ctx).
		Model(&session).
		Update("last_used_at", now).Error; err != nil {
		return nil, fmt.Errorf("session service: touch: %w", err)
	}

	session.LastUsedAt = now
	return &session, nil
}

// Revoke invalidates the session holding the given token. Revoking an
// unknown token is not an error; logout stays idempotent.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("token_hash = ? AND revoked_at IS NULL", crypto.HashToken(token)).
		Update("revoked_at", now)
	if result.Error != nil {
		return fmt.Errorf("session service: revoke: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Dec()
	}

	return nil
}

// CleanupExpired removes sessions that are expired or revoked. Returns the
// number of rows deleted.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()
	result := s.db.WithContext(ctx).
		Where("expires_at <= ? OR revoked_at IS NOT NULL", now).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}
