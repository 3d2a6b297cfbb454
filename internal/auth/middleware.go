package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"chathub/internal/models"
)

const userContextKey = "auth_user"

// UserLookup resolves a token subject to the stored user record.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Middleware validates bearer tokens and stores the resolved user in
// the gin context. Any failure answers 401.
func (s *Service) Middleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		subject, err := s.ValidateToken(token)
		if err != nil {
			log.WithField("reason", err.Error()).Warn("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		user, err := users.GetUserByUsername(c.Request.Context(), subject)
		if err != nil {
			log.WithField("username", subject).Warn("token subject not found")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the caller is an admin. Only
// is_admin is consulted; role permissions are stored, not enforced.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if !user.IsAdmin {
			log.WithField("username", user.Username).Warn("unauthorized admin access attempt")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not authorized"})
			return
		}
		c.Next()
	}
}

// CurrentUser retrieves the authenticated user from the gin context.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	val, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
