package models

import "time"

// AdminUser is a back-office account able to manage content, subscribers, and leads.
// Accounts are provisioned out-of-band (seeded at startup); this application only
// ever mutates the password hash.
type AdminUser struct {
	BaseModel

	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
}
