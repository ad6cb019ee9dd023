package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/driftlinehq/driftline-site/internal/auth"
	"github.com/driftlinehq/driftline-site/pkg/errors"
	"github.com/driftlinehq/driftline-site/pkg/response"
)

const (
	// SessionCookieName carries the opaque session token.
	SessionCookieName = "driftline_session"

	CtxAdminIDKey      = "adminID"
	CtxSessionIDKey    = "sessionID"
	CtxSessionTokenKey = "sessionToken"
)

// SessionAuth enforces an authenticated admin session. The token comes from
// the session cookie, with an Authorization bearer fallback for API clients.
func SessionAuth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		session, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			// Normalise all validation failures to 401
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxAdminIDKey, session.AdminUserID)
		c.Set(CtxSessionIDKey, session.ID)
		c.Set(CtxSessionTokenKey, token)

		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}

	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
