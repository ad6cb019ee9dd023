package models

import "time"

// Session is an opaque-token admin session carried in an HTTP-only cookie.
type Session struct {
	BaseModel

	AdminUserID string     `gorm:"type:uuid;not null;index" json:"admin_user_id"`
	AdminUser   *AdminUser `gorm:"foreignKey:AdminUserID" json:"-"`

	// TokenHash is the sha256 of the cookie token; the plaintext is only
	// handed to the client at creation and never stored.
	TokenHash string `gorm:"uniqueIndex;not null" json:"-"`
	Token     string `gorm:"-" json:"-"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`

	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
	LastUsedAt time.Time  `json:"last_used_at"`
}

// Active reports whether the session is still usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
