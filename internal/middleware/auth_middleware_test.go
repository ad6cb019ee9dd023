package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	iauth "github.com/driftlinehq/driftline-site/internal/auth"
	"github.com/driftlinehq/driftline-site/internal/models"
)

func newSessionFixture(t *testing.T) (*iauth.SessionService, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AdminUser{}, &models.Session{}))

	admin := &models.AdminUser{
		Username:     "casey",
		Email:        "casey@driftline.test",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(admin).Error)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)
	return sessions, admin.ID
}

func protectedRouter(sessions *iauth.SessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/ping", SessionAuth(sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin_id": c.GetString(CtxAdminIDKey)})
	})
	return r
}

func TestSessionAuthAcceptsCookie(t *testing.T) {
	sessions, adminID := newSessionFixture(t)
	session, err := sessions.Create(context.Background(), adminID, iauth.SessionMetadata{})
	require.NoError(t, err)

	r := protectedRouter(sessions)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.Token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), adminID)
}

func TestSessionAuthAcceptsBearerFallback(t *testing.T) {
	sessions, adminID := newSessionFixture(t)
	session, err := sessions.Create(context.Background(), adminID, iauth.SessionMetadata{})
	require.NoError(t, err)

	r := protectedRouter(sessions)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionAuthRejectsMissingAndBogusTokens(t *testing.T) {
	sessions, _ := newSessionFixture(t)
	r := protectedRouter(sessions)

	for name, decorate := range map[string]func(*http.Request){
		"no credentials": func(*http.Request) {},
		"bogus cookie": func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-session"})
		},
		"malformed header": func(req *http.Request) {
			req.Header.Set("Authorization", "Token abc")
		},
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		decorate(req)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestSessionAuthRejectsRevokedSession(t *testing.T) {
	sessions, adminID := newSessionFixture(t)
	session, err := sessions.Create(context.Background(), adminID, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, sessions.Revoke(context.Background(), session.Token))

	r := protectedRouter(sessions)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.Token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
