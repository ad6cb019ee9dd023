package models

import "time"

// PasswordResetToken stores the hash of a single-use reset token. The plaintext
// token is only ever sent by email; a consumed token keeps UsedAt as a tombstone.
type PasswordResetToken struct {
	BaseModel

	AdminUserID string `gorm:"type:uuid;not null;index" json:"admin_user_id"`
	TokenHash   string `gorm:"uniqueIndex;not null" json:"-"`

	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

// Consumable reports whether the token may still be redeemed at the given instant.
func (t *PasswordResetToken) Consumable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
