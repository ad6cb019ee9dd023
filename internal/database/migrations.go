package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.AdminUser{},
		&models.Session{},
		&models.PasswordResetToken{},
		&models.Subscriber{},
		&models.ContactLead{},
		&models.BlogPost{},
		&models.CaseStudy{},
		&models.Testimonial{},
		&models.NewsletterSend{},
	)
}

// AdminSeed carries the bootstrap admin credentials taken from configuration.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// SeedAdmin provisions the initial admin account when no admin exists yet.
// Existing accounts are never touched; password changes go through the
// credential service.
func SeedAdmin(db *gorm.DB, seed AdminSeed) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	username := strings.TrimSpace(seed.Username)
	if username == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.AdminUser{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count admin users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if strings.TrimSpace(seed.Password) == "" {
		return errors.New("seed admin: password is required")
	}

	hash, err := crypto.HashPassword(seed.Password)
	if err != nil {
		return fmt.Errorf("seed admin: hash password: %w", err)
	}

	admin := models.AdminUser{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(seed.Email)),
		PasswordHash: hash,
	}

	return db.Create(&admin).Error
}

// AutoMigrateAndSeed convenience helper used during application start-up.
func AutoMigrateAndSeed(db *gorm.DB, seed AdminSeed) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := SeedAdmin(db, seed); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	return nil
}
