package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/driftlinehq/driftline-site/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentAdminID returns the authenticated admin id placed by the session middleware.
func currentAdminID(c *gin.Context) string {
	return c.GetString(middleware.CtxAdminIDKey)
}

// currentSessionToken returns the raw session token for the request, if any.
func currentSessionToken(c *gin.Context) string {
	return c.GetString(middleware.CtxSessionTokenKey)
}
