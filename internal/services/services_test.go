package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/pkg/crypto"
	"github.com/driftlinehq/driftline-site/pkg/mail"
)

func openServicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.AdminUser{},
		&models.Session{},
		&models.PasswordResetToken{},
		&models.Subscriber{},
		&models.ContactLead{},
		&models.BlogPost{},
		&models.CaseStudy{},
		&models.Testimonial{},
		&models.NewsletterSend{},
	))

	return db
}

func seedServiceAdmin(t *testing.T, db *gorm.DB, username, password string) *models.AdminUser {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	admin := &models.AdminUser{
		Username:     username,
		Email:        username + "@driftline.test",
		PasswordHash: hash,
	}
	require.NoError(t, db.Create(admin).Error)
	return admin
}

// fakeMailer records sent messages and can be told to fail per recipient.
type fakeMailer struct {
	mu       sync.Mutex
	sent     []mail.Message
	failWith map[string]error
	err      error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failWith: make(map[string]error)}
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	for _, rcpt := range msg.To {
		if err, ok := m.failWith[rcpt]; ok {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.sent))
	copy(out, m.sent)
	return out
}
