package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	iauth "github.com/driftlinehq/driftline-site/internal/auth"
	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/internal/services"
	"github.com/driftlinehq/driftline-site/pkg/crypto"
)

func openMaintenanceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.AdminUser{},
		&models.Session{},
		&models.PasswordResetToken{},
	))
	return db
}

func TestRunOncePurgesExpiredSessionsAndTokens(t *testing.T) {
	db := openMaintenanceTestDB(t)

	admin := &models.AdminUser{Username: "casey", Email: "casey@driftline.test", PasswordHash: "x"}
	require.NoError(t, db.Create(admin).Error)

	now := time.Now()
	require.NoError(t, db.Create(&models.Session{
		AdminUserID: admin.ID,
		TokenHash:   crypto.HashToken("stale-session"),
		ExpiresAt:   now.Add(-time.Hour),
		LastUsedAt:  now.Add(-2 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.Session{
		AdminUserID: admin.ID,
		TokenHash:   crypto.HashToken("live-session"),
		ExpiresAt:   now.Add(time.Hour),
		LastUsedAt:  now,
	}).Error)

	used := now.Add(-time.Minute)
	require.NoError(t, db.Create(&models.PasswordResetToken{
		AdminUserID: admin.ID,
		TokenHash:   crypto.HashToken("spent"),
		ExpiresAt:   now.Add(time.Hour),
		UsedAt:      &used,
	}).Error)
	require.NoError(t, db.Create(&models.PasswordResetToken{
		AdminUserID: admin.ID,
		TokenHash:   crypto.HashToken("fresh"),
		ExpiresAt:   now.Add(time.Hour),
	}).Error)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)
	credentials, err := iauth.NewCredentialService(db)
	require.NoError(t, err)
	resets, err := services.NewPasswordResetService(db, credentials, nil)
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, resets)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var sessionCount, tokenCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Count(&tokenCount).Error)
	require.EqualValues(t, 1, sessionCount)
	require.EqualValues(t, 1, tokenCount)
}

func TestStartSkipsWhenNothingConfigured(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}
