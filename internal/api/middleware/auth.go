package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/seedpool/seedpool-backend/internal/api/shared/errors"
	"github.com/seedpool/seedpool-backend/internal/auth"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

const (
	// UserContextKey is the gin context key holding the authenticated user
	UserContextKey = "auth_user"
	// ClaimsContextKey is the gin context key holding the access token claims
	ClaimsContextKey = "auth_claims"
)

// Session returns a gin middleware guarding authenticated routes. The
// access token is read from the Authorization header only; refresh tokens
// never authorize a request directly. All rejections are a uniform 401 so
// callers cannot probe which check failed.
func Session(issuer *auth.Issuer, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c.GetHeader("Authorization"))
		if !isPlausibleToken(tokenString) {
			abortUnauthorized(c, "missing or malformed access token")
			return
		}

		claims, err := issuer.VerifyAccessToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "invalid access token")
			return
		}

		revoked, err := issuer.IsAccessTokenRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Denylist check failed"))
			abortUnauthorized(c, "session check failed")
			return
		}
		if revoked {
			abortUnauthorized(c, "access token revoked")
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			abortUnauthorized(c, "invalid token subject")
			return
		}

		user, err := st.GetUserByID(c.Request.Context(), userID)
		if err != nil || user == nil {
			abortUnauthorized(c, "unknown session user")
			return
		}

		c.Set(UserContextKey, user)
		c.Set(ClaimsContextKey, claims)
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by the Session middleware
func CurrentUser(c *gin.Context) (*schema.User, bool) {
	value, ok := c.Get(UserContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*schema.User)
	return user, ok
}

// extractBearerToken pulls the credential out of an Authorization header
func extractBearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// isPlausibleToken rejects the literal placeholders some clients send
// when their storage is empty, before any signature work happens
func isPlausibleToken(token string) bool {
	switch token {
	case "", "null", "undefined":
		return false
	}
	return true
}

func abortUnauthorized(c *gin.Context, details string) {
	logger.Debug("Authentication failed",
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
		zap.String("reason", details))
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		apierrors.NewUnauthorizedError("Authentication failed"))
}
