package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/driftlinehq/driftline-site/internal/auth"
	"github.com/driftlinehq/driftline-site/internal/middleware"
	"github.com/driftlinehq/driftline-site/internal/models"
	"github.com/driftlinehq/driftline-site/internal/services"
	"github.com/driftlinehq/driftline-site/pkg/errors"
	"github.com/driftlinehq/driftline-site/pkg/metrics"
	"github.com/driftlinehq/driftline-site/pkg/response"
)

// AuthHandler manages the admin authentication flows.
type AuthHandler struct {
	db          *gorm.DB
	credentials *iauth.CredentialService
	sessions    *iauth.SessionService
	resets      *services.PasswordResetService
}

func NewAuthHandler(db *gorm.DB, credentials *iauth.CredentialService, sessions *iauth.SessionService, resets *services.PasswordResetService) *AuthHandler {
	return &AuthHandler{db: db, credentials: credentials, sessions: sessions, resets: resets}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/admin/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	admin, err := h.credentials.Verify(requestContext(c), req.Username, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	session, err := h.sessions.Create(requestContext(c), admin.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInternalServer)
		return
	}

	// The timestamp is informational; login proceeds even if it fails.
	_ = h.credentials.TouchLogin(requestContext(c), admin.ID)

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	h.setSessionCookie(c, session.Token, int(h.sessions.TTL().Seconds()))

	response.Success(c, http.StatusOK, gin.H{
		"admin": adminPayload(admin),
	})
}

// POST /api/admin/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := currentSessionToken(c)
	if token != "" {
		if err := h.sessions.Revoke(requestContext(c), token); err != nil {
			response.Error(c, errors.ErrInternalServer)
			return
		}
	}

	h.setSessionCookie(c, "", -1)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// GET /api/admin/me
func (h *AuthHandler) Me(c *gin.Context) {
	var admin models.AdminUser
	if err := h.db.WithContext(requestContext(c)).Take(&admin, "id = ?", currentAdminID(c)).Error; err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"admin": adminPayload(&admin)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// POST /api/admin/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	var admin models.AdminUser
	if err := h.db.WithContext(requestContext(c)).Take(&admin, "id = ?", currentAdminID(c)).Error; err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.credentials.ChangePassword(requestContext(c), admin.Username, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

type resetRequestPayload struct {
	Username string `json:"username" validate:"required"`
}

// POST /api/admin/request-password-reset
//
// Always answers with the same message so the endpoint cannot be used to
// probe which usernames exist.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req resetRequestPayload
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.Request(requestContext(c), req.Username); err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "If the account exists, a reset link has been sent",
	})
}

type resetPasswordPayload struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// POST /api/admin/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordPayload
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.Reset(requestContext(c), req.Token, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   c.Request.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func adminPayload(admin *models.AdminUser) gin.H {
	return gin.H{
		"id":            admin.ID,
		"username":      admin.Username,
		"email":         admin.Email,
		"last_login_at": admin.LastLoginAt,
	}
}
