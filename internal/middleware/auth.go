package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/tabib-api/internal/auth"
)

const sessionKey = "session"

// Authenticator resolves bearer tokens to sessions.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

// RoleChecker answers the role questions the guards ask.
type RoleChecker interface {
	IsAdmin(ctx context.Context, sess *auth.Session) bool
	IsDoctor(ctx context.Context, sess *auth.Session) bool
}

// AuthMiddleware requires a live session. Browsers cannot set headers on
// websocket upgrades, so those may pass the token as ?token=.
func AuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" && c.IsWebsocket() {
			token = c.Query("token")
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		sess, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		// Set user info in the context for handlers to use
		c.Set(sessionKey, sess)
		c.Set("userID", sess.UID)

		c.Next()
	}
}

// Session returns the session stored by AuthMiddleware, or nil.
func Session(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}

func RequireAdmin(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !roles.IsAdmin(c.Request.Context(), Session(c)) {
			abort(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

func RequireDoctor(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !roles.IsDoctor(c.Request.Context(), Session(c)) {
			abort(c, http.StatusForbidden, "Doctor access required")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
