package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/mutual_aid_system/internal/models"
)

const userContextKey = "currentUser"

// AuthMiddleware - middleware аутентификации по bearer-токену.
// Разрешает токен в пользователя до того, как запрос коснётся какого-либо состояния.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			h.logger.Warn("Bearer token missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		accessToken := strings.TrimPrefix(authHeader, "Bearer ")
		user, err := h.authService.Identify(c.Request.Context(), accessToken)
		if err != nil {
			h.logger.WithError(err).Warn("Failed to resolve bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// currentUser достает пользователя, положенного в контекст middleware
func currentUser(c *gin.Context) (*models.User, bool) {
	val, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok
}
