package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/driftlinehq/driftline-site/internal/app"
	iauth "github.com/driftlinehq/driftline-site/internal/auth"
	"github.com/driftlinehq/driftline-site/internal/database"
	"github.com/driftlinehq/driftline-site/internal/middleware"
	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/internal/services"
	"github.com/driftlinehq/driftline-site/pkg/crypto"
	"github.com/driftlinehq/driftline-site/pkg/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

type routerFixture struct {
	router *gin.Engine
	db     *gorm.DB
	mailer *recordingMailer
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	hash, err := crypto.HashPassword("first-password")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.AdminUser{
		Username:     "casey",
		Email:        "casey@driftline.test",
		PasswordHash: hash,
	}).Error)

	mailer := &recordingMailer{}

	credentials, err := iauth.NewCredentialService(db)
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)
	resets, err := services.NewPasswordResetService(db, credentials, mailer)
	require.NoError(t, err)
	subscribers, err := services.NewSubscriberService(db, mailer,
		services.WithWelcomeSender(func(context.Context, string) {}))
	require.NoError(t, err)
	newsletter, err := services.NewNewsletterService(db, subscribers, mailer,
		services.WithBatchDelay(0))
	require.NoError(t, err)
	contacts, err := services.NewContactService(db, mailer)
	require.NoError(t, err)
	blog, err := services.NewBlogService(db)
	require.NoError(t, err)
	content, err := services.NewContentService(db)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.RateLimit.Requests = 10000
	cfg.Server.RateLimit.Window = time.Minute
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	router, err := NewRouter(db, cfg, Dependencies{
		Credentials: credentials,
		Sessions:    sessions,
		Resets:      resets,
		Subscribers: subscribers,
		Newsletter:  newsletter,
		Contacts:    contacts,
		Blog:        blog,
		Content:     content,
	})
	require.NoError(t, err)

	return &routerFixture{router: router, db: db, mailer: mailer}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range decorate {
		fn(req)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) login(t *testing.T) *http.Cookie {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/admin/login", gin.H{
		"username": "casey",
		"password": "first-password",
	})
	require.Equal(t, http.StatusOK, w.Code)

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == middleware.SessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

func withCookie(cookie *http.Cookie) func(*http.Request) {
	return func(req *http.Request) { req.AddCookie(cookie) }
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	health := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, health.Code)
	require.Contains(t, health.Body.String(), `"status":"ok"`)

	metricsResp := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metricsResp.Code)
}

func TestLoginLogoutFlow(t *testing.T) {
	f := newRouterFixture(t)

	bad := f.do(t, http.MethodPost, "/api/admin/login", gin.H{
		"username": "casey",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, bad.Code)
	require.Contains(t, bad.Body.String(), "INVALID_CREDENTIALS")

	cookie := f.login(t)

	me := f.do(t, http.MethodGet, "/api/admin/me", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), "casey")

	logout := f.do(t, http.MethodPost, "/api/admin/logout", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, logout.Code)

	// The session is gone after logout.
	meAgain := f.do(t, http.MethodGet, "/api/admin/me", nil, withCookie(cookie))
	require.Equal(t, http.StatusUnauthorized, meAgain.Code)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	f := newRouterFixture(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/me"},
		{http.MethodGet, "/api/admin/subscribers"},
		{http.MethodPost, "/api/admin/newsletter/send"},
		{http.MethodGet, "/api/admin/leads"},
		{http.MethodPost, "/api/admin/blog/posts"},
	} {
		w := f.do(t, route.method, route.path, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t)

	wrong := f.do(t, http.MethodPost, "/api/admin/change-password", gin.H{
		"current_password": "not-the-password",
		"new_password":     "second-password",
	}, withCookie(cookie))
	require.Equal(t, http.StatusBadRequest, wrong.Code)
	require.Contains(t, wrong.Body.String(), "INCORRECT_CURRENT_PASSWORD")

	ok := f.do(t, http.MethodPost, "/api/admin/change-password", gin.H{
		"current_password": "first-password",
		"new_password":     "second-password",
	}, withCookie(cookie))
	require.Equal(t, http.StatusOK, ok.Code)

	relogin := f.do(t, http.MethodPost, "/api/admin/login", gin.H{
		"username": "casey",
		"password": "second-password",
	})
	require.Equal(t, http.StatusOK, relogin.Code)
}

func TestPasswordResetFlowOverHTTP(t *testing.T) {
	f := newRouterFixture(t)

	unknown := f.do(t, http.MethodPost, "/api/admin/request-password-reset", gin.H{
		"username": "stranger",
	})
	require.Equal(t, http.StatusOK, unknown.Code)
	require.Empty(t, f.mailer.messages())

	known := f.do(t, http.MethodPost, "/api/admin/request-password-reset", gin.H{
		"username": "casey",
	})
	require.Equal(t, http.StatusOK, known.Code)
	// Both responses carry the same body, so account existence stays hidden.
	require.JSONEq(t, unknown.Body.String(), known.Body.String())
	require.Len(t, f.mailer.messages(), 1)

	bogus := f.do(t, http.MethodPost, "/api/admin/reset-password", gin.H{
		"token":        "not-a-real-token",
		"new_password": "replacement-pass",
	})
	require.Equal(t, http.StatusBadRequest, bogus.Code)
	require.Contains(t, bogus.Body.String(), "INVALID_OR_EXPIRED_TOKEN")
}

func TestNewsletterSubscribeAndSend(t *testing.T) {
	f := newRouterFixture(t)

	for i := 0; i < 3; i++ {
		w := f.do(t, http.MethodPost, "/api/newsletter/subscribe", gin.H{
			"email": fmt.Sprintf("reader%d@example.com", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	duplicate := f.do(t, http.MethodPost, "/api/newsletter/subscribe", gin.H{
		"email": "reader0@example.com",
	})
	require.Equal(t, http.StatusBadRequest, duplicate.Code)
	require.Contains(t, duplicate.Body.String(), "ALREADY_SUBSCRIBED")

	unsub := f.do(t, http.MethodPost, "/api/newsletter/unsubscribe", gin.H{
		"email": "reader2@example.com",
	})
	require.Equal(t, http.StatusOK, unsub.Code)

	cookie := f.login(t)

	list := f.do(t, http.MethodGet, "/api/admin/subscribers", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, list.Code)
	require.Contains(t, list.Body.String(), "reader1@example.com")

	send := f.do(t, http.MethodPost, "/api/admin/newsletter/send", gin.H{
		"subject": "Issue 1",
		"body":    "<p>hello</p>",
	}, withCookie(cookie))
	require.Equal(t, http.StatusOK, send.Code)
	require.Contains(t, send.Body.String(), `"sent":2`)

	history := f.do(t, http.MethodGet, "/api/admin/newsletter/history", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, history.Code)
	require.Contains(t, history.Body.String(), "Issue 1")
}

func TestContactSubmissionFlow(t *testing.T) {
	f := newRouterFixture(t)

	invalid := f.do(t, http.MethodPost, "/api/contact/submit", gin.H{
		"name":  "Jordan",
		"email": "not-an-email",
	})
	require.Equal(t, http.StatusBadRequest, invalid.Code)

	submitted := f.do(t, http.MethodPost, "/api/contact/submit", gin.H{
		"name":    "Jordan Vale",
		"email":   "jordan@client.example",
		"message": "We need help with a replatforming project.",
	})
	require.Equal(t, http.StatusCreated, submitted.Code)

	cookie := f.login(t)
	leads := f.do(t, http.MethodGet, "/api/admin/leads", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, leads.Code)
	require.Contains(t, leads.Body.String(), "jordan@client.example")
}

func TestBlogLifecycleOverHTTP(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t)

	created := f.do(t, http.MethodPost, "/api/admin/blog/posts", gin.H{
		"title":   "Hello World",
		"content": "First post.",
	}, withCookie(cookie))
	require.Equal(t, http.StatusCreated, created.Code)

	var createdBody struct {
		Data struct {
			Post models.BlogPost `json:"post"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createdBody))
	postID := createdBody.Data.Post.ID
	require.NotEmpty(t, postID)

	// Drafts are invisible to the public site.
	hidden := f.do(t, http.MethodGet, "/api/blog/posts/hello-world", nil)
	require.Equal(t, http.StatusNotFound, hidden.Code)

	published := f.do(t, http.MethodPut, "/api/admin/blog/posts/"+postID, gin.H{
		"title":   "Hello World",
		"content": "First post.",
		"status":  "published",
	}, withCookie(cookie))
	require.Equal(t, http.StatusOK, published.Code)

	visible := f.do(t, http.MethodGet, "/api/blog/posts/hello-world", nil)
	require.Equal(t, http.StatusOK, visible.Code)
	require.Contains(t, visible.Body.String(), "Hello World")

	deleted := f.do(t, http.MethodDelete, "/api/admin/blog/posts/"+postID, nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, deleted.Code)

	gone := f.do(t, http.MethodGet, "/api/blog/posts/hello-world", nil)
	require.Equal(t, http.StatusNotFound, gone.Code)
}

func TestPublicContentEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	now := time.Now()
	require.NoError(t, f.db.Create(&models.CaseStudy{
		Title:         "Freight Win",
		Slug:          "freight-win",
		Company:       "Acme Freight",
		Industry:      "logistics",
		SolutionType:  "automation",
		Problem:       "p",
		Solution:      "s",
		Results:       "r",
		Status:        models.PostPublished,
		PublishedDate: &now,
	}).Error)
	require.NoError(t, f.db.Create(&models.Testimonial{
		Name:     "Sam Osei",
		Title:    "CTO",
		Company:  "Acme Freight",
		Quote:    "Driftline delivered.",
		Featured: true,
	}).Error)

	studies := f.do(t, http.MethodGet, "/api/case-studies?industry=logistics", nil)
	require.Equal(t, http.StatusOK, studies.Code)
	require.Contains(t, studies.Body.String(), "freight-win")

	study := f.do(t, http.MethodGet, "/api/case-studies/freight-win", nil)
	require.Equal(t, http.StatusOK, study.Code)

	testimonials := f.do(t, http.MethodGet, "/api/testimonials?featured=true", nil)
	require.Equal(t, http.StatusOK, testimonials.Code)
	require.Contains(t, testimonials.Body.String(), "Sam Osei")
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}
